package listing

// Status is the availability of a listing.
type Status string

const (
	StatusAvailable   Status = "Disponível"
	StatusUnavailable Status = "Indisponível"
)

// SlotCount is the number of photo slots a stored listing has.
const SlotCount = 10

// PhotoSet holds photo references by slot. A nil entry is an empty slot.
type PhotoSet [SlotCount]*string

// Count returns the number of occupied slots.
func (p PhotoSet) Count() int {
	n := 0
	for _, ref := range p {
		if ref != nil {
			n++
		}
	}
	return n
}

// HasAny reports whether at least one slot is occupied.
func (p PhotoSet) HasAny() bool {
	return p.Count() > 0
}

// Refs returns the occupied references in slot order.
func (p PhotoSet) Refs() []string {
	refs := make([]string, 0, SlotCount)
	for _, ref := range p {
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	return refs
}

// Contains reports whether ref occupies any slot.
func (p PhotoSet) Contains(ref string) bool {
	for _, r := range p {
		if r != nil && *r == ref {
			return true
		}
	}
	return false
}

// Rewrite replaces every occupied reference with fn(ref).
func (p *PhotoSet) Rewrite(fn func(string) string) {
	for i, ref := range p {
		if ref == nil {
			continue
		}
		v := fn(*ref)
		p[i] = &v
	}
}

// Record is a fully typed listing candidate. Identity and timestamps are
// assigned by the persistence layer.
type Record struct {
	Title            string   `json:"title" validate:"required"`
	Description      string   `json:"description" validate:"required"`
	ShortDescription string   `json:"shortDescription"`
	Status           Status   `json:"status" validate:"required"`
	Bedrooms         int      `json:"bedrooms" validate:"min=0"`
	Bathrooms        int      `json:"bathrooms" validate:"min=0"`
	GarageSpaces     int      `json:"garageSpaces" validate:"min=0"`
	Price            float64  `json:"price" validate:"min=0"`
	Location         string   `json:"location" validate:"required"`
	PropertyType     string   `json:"propertyType" validate:"required"`
	HouseArea        int      `json:"houseArea" validate:"min=0"`
	LotArea          *int     `json:"lotArea,omitempty" validate:"omitempty,min=0"`
	Notes            *string  `json:"notes,omitempty"`
	Photos           PhotoSet `json:"photos"`
}

// Upload describes a file received on a request field. Ref may be a
// placeholder that the caller rewrites with PhotoSet.Rewrite once the file
// is stored.
type Upload struct {
	Field string
	Ref   string
}

// Input is the loosely typed material a listing is built from.
type Input struct {
	// Fields holds raw body values keyed by field name: strings, string
	// slices (repeated form fields), json.Number, float64 or nil.
	Fields map[string]any
	// Uploads in the order they were received.
	Uploads []Upload
	// Previous is the stored record when updating, nil when creating.
	Previous *Record
}
