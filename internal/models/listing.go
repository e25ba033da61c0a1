package models

import (
	"time"

	"imobiliaria/server/internal/listing"
)

// Listing is the stored form of a listing record. Photo slots are kept as
// ten nullable columns so slot identity survives a round trip.
type Listing struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	ShortDescription string     `gorm:"type:text" json:"shortDescription"`
	Status           string     `gorm:"size:32;not null;index" json:"status"`
	Bedrooms         int        `gorm:"not null" json:"bedrooms"`
	Bathrooms        int        `gorm:"not null" json:"bathrooms"`
	GarageSpaces     int        `gorm:"not null" json:"garageSpaces"`
	Price            float64    `gorm:"not null" json:"price"`
	Location         string     `gorm:"size:255;not null" json:"location"`
	PropertyType     string     `gorm:"size:64;not null" json:"propertyType"`
	HouseArea        int        `gorm:"not null" json:"houseArea"`
	LotArea          *int       `json:"lotArea"`
	Notes            *string    `gorm:"type:text" json:"notes"`
	Photo01          *string    `gorm:"column:photo01" json:"photo01"`
	Photo02          *string    `gorm:"column:photo02" json:"photo02"`
	Photo03          *string    `gorm:"column:photo03" json:"photo03"`
	Photo04          *string    `gorm:"column:photo04" json:"photo04"`
	Photo05          *string    `gorm:"column:photo05" json:"photo05"`
	Photo06          *string    `gorm:"column:photo06" json:"photo06"`
	Photo07          *string    `gorm:"column:photo07" json:"photo07"`
	Photo08          *string    `gorm:"column:photo08" json:"photo08"`
	Photo09          *string    `gorm:"column:photo09" json:"photo09"`
	Photo10          *string    `gorm:"column:photo10" json:"photo10"`
	CreatedAt        *time.Time `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) slots() [listing.SlotCount]**string {
	return [listing.SlotCount]**string{
		&l.Photo01, &l.Photo02, &l.Photo03, &l.Photo04, &l.Photo05,
		&l.Photo06, &l.Photo07, &l.Photo08, &l.Photo09, &l.Photo10,
	}
}

// Photos returns the slot columns as a PhotoSet.
func (l *Listing) Photos() listing.PhotoSet {
	var set listing.PhotoSet
	for i, slot := range l.slots() {
		set[i] = *slot
	}
	return set
}

// SetPhotos overwrites every slot column, including the empty ones.
func (l *Listing) SetPhotos(set listing.PhotoSet) {
	for i, slot := range l.slots() {
		*slot = set[i]
	}
}

// Record converts the stored row back into the core record shape, used as
// the previous value when normalizing an update.
func (l *Listing) Record() *listing.Record {
	return &listing.Record{
		Title:            l.Title,
		Description:      l.Description,
		ShortDescription: l.ShortDescription,
		Status:           listing.Status(l.Status),
		Bedrooms:         l.Bedrooms,
		Bathrooms:        l.Bathrooms,
		GarageSpaces:     l.GarageSpaces,
		Price:            l.Price,
		Location:         l.Location,
		PropertyType:     l.PropertyType,
		HouseArea:        l.HouseArea,
		LotArea:          l.LotArea,
		Notes:            l.Notes,
		Photos:           l.Photos(),
	}
}

// NewListing builds a row from a normalized record. ID and timestamps are
// left for the repository.
func NewListing(rec listing.Record) *Listing {
	l := &Listing{
		Title:            rec.Title,
		Description:      rec.Description,
		ShortDescription: rec.ShortDescription,
		Status:           string(rec.Status),
		Bedrooms:         rec.Bedrooms,
		Bathrooms:        rec.Bathrooms,
		GarageSpaces:     rec.GarageSpaces,
		Price:            rec.Price,
		Location:         rec.Location,
		PropertyType:     rec.PropertyType,
		HouseArea:        rec.HouseArea,
		LotArea:          rec.LotArea,
		Notes:            rec.Notes,
	}
	l.SetPhotos(rec.Photos)
	return l
}
