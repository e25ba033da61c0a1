package listing

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Candidate is a validated record ready for persistence together with the
// photo bookkeeping the caller needs to manage stored objects.
type Candidate struct {
	Record     Record
	Resolution Resolution
}

// Normalizer turns raw request material into a validated Record. It performs
// no I/O and holds no mutable state, so one instance serves concurrent requests.
type Normalizer struct {
	opts     Options
	resolver *Resolver
	validate *validator.Validate
	statuses map[string]Status
	allowed  string
}

// NewNormalizer builds a normalizer for opts. Empty status aliases fall back
// to DefaultStatusAliases.
func NewNormalizer(opts Options) (*Normalizer, error) {
	if len(opts.StatusAliases) == 0 {
		opts.StatusAliases = DefaultStatusAliases()
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid listing options: %w", err)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	statuses := make(map[string]Status, len(opts.StatusAliases))
	for alias, status := range opts.StatusAliases {
		statuses[foldKey(alias)] = status
	}

	return &Normalizer{
		opts:     opts,
		resolver: NewResolver(opts),
		validate: v,
		statuses: statuses,
		allowed:  allowedStatuses(statuses),
	}, nil
}

// Options returns the options the normalizer was built with.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Resolver returns the photo resolver used by Normalize.
func (n *Normalizer) Resolver() *Resolver {
	return n.resolver
}

// Normalize validates in and returns the resulting candidate. Input problems
// are reported as a *ValidationError listing every violated field.
func (n *Normalizer) Normalize(in Input) (*Candidate, error) {
	p := newParser(in.Fields, in.Previous == nil)

	var rec Record
	if in.Previous != nil {
		rec = *in.Previous
	}
	rec.Title = p.text(rec.Title, true, "title", "titulo")
	rec.Description = p.text(rec.Description, true, "description", "descricao")
	rec.ShortDescription = p.text(rec.ShortDescription, n.opts.RequireShortDescription,
		"shortDescription", "descricaoPrevia", "descricao_previa")
	rec.Status = n.status(p, rec.Status)
	rec.Bedrooms = p.integer(rec.Bedrooms, "bedrooms", "quartos")
	rec.Bathrooms = p.integer(rec.Bathrooms, "bathrooms", "banheiros")
	rec.GarageSpaces = p.integer(rec.GarageSpaces, "garageSpaces", "garagem")
	rec.Price = p.decimal(rec.Price, "price", "preco")
	rec.Location = p.text(rec.Location, true, "location", "localizacao")
	rec.PropertyType = p.text(rec.PropertyType, true, "propertyType", "tipo")
	rec.HouseArea = p.integer(rec.HouseArea, "houseArea", "metragemCasa")
	rec.LotArea = p.optionalInteger(rec.LotArea, "lotArea", "metragemTerreno")
	rec.Notes = p.optionalText(rec.Notes, "notes", "observacao")

	if n.opts.RequireShortDescription && rec.ShortDescription == "" {
		p.fail("shortDescription", reasonRequired)
	}

	var previous *PhotoSet
	if in.Previous != nil {
		previous = &in.Previous.Photos
	}
	res, photoErrs := n.resolver.Resolve(in.Uploads, p.fields, previous)
	rec.Photos = res.Photos
	for _, fe := range photoErrs {
		p.fail(fe.Field, fe.Reason)
	}

	if err := n.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("failed to validate listing: %w", err)
		}
		for _, fe := range verrs {
			p.fail(fe.Field(), describe(fe))
		}
	}

	if len(p.errs) > 0 {
		return nil, NewValidationError(p.errs...)
	}
	return &Candidate{Record: rec, Resolution: res}, nil
}

func (n *Normalizer) status(p *parser, current Status) Status {
	raw, ok := lookup(p.fields, "status")
	if !ok {
		p.absent("status", true)
		return current
	}
	if isBlank(raw) {
		p.fail("status", reasonRequired)
		return current
	}
	s, ok := asString(raw)
	if !ok {
		p.fail("status", reasonText)
		return current
	}
	status, ok := n.statuses[foldKey(s)]
	if !ok {
		p.fail("status", "must be one of: "+n.allowed)
		return current
	}
	return status
}

func allowedStatuses(statuses map[string]Status) string {
	seen := map[Status]bool{}
	var names []string
	for _, s := range statuses {
		if !seen[s] {
			seen[s] = true
			names = append(names, string(s))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return reasonRequired
	case "min":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
