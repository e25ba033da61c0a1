package listing

import (
	"fmt"
	"strings"
)

// PhotoMode selects how photos are addressed on input.
type PhotoMode string

const (
	// PhotoModeSlots addresses photos by fixed slot fields (photo01..photo10).
	PhotoModeSlots PhotoMode = "slots"
	// PhotoModeArray takes photos as one ordered list.
	PhotoModeArray PhotoMode = "array"
	// PhotoModeNone ignores photos on input.
	PhotoModeNone PhotoMode = "none"
)

// Options configures the normalizer and resolver.
type Options struct {
	RequireAtLeastOnePhoto  bool
	MaxPhotoSlots           int
	StatusAliases           map[string]Status
	PhotoMode               PhotoMode
	RequireShortDescription bool
}

// DefaultOptions returns the options the service runs with unless configured otherwise.
func DefaultOptions() Options {
	return Options{
		MaxPhotoSlots:           SlotCount,
		StatusAliases:           DefaultStatusAliases(),
		PhotoMode:               PhotoModeSlots,
		RequireShortDescription: true,
	}
}

// DefaultStatusAliases maps the accepted spellings to canonical statuses.
// Matching is case and accent insensitive, so "DISPONIVEL" hits "Disponível".
func DefaultStatusAliases() map[string]Status {
	return map[string]Status{
		"Disponível":   StatusAvailable,
		"Available":    StatusAvailable,
		"Indisponível": StatusUnavailable,
		"Unavailable":  StatusUnavailable,
	}
}

// Validate checks that the options describe a usable schema.
func (o Options) Validate() error {
	if o.MaxPhotoSlots < 1 || o.MaxPhotoSlots > SlotCount {
		return fmt.Errorf("max photo slots must be between 1 and %d, got %d", SlotCount, o.MaxPhotoSlots)
	}
	switch o.PhotoMode {
	case PhotoModeSlots, PhotoModeArray:
	case PhotoModeNone:
		if o.RequireAtLeastOnePhoto {
			return fmt.Errorf("photo mode %q cannot require a photo", o.PhotoMode)
		}
	default:
		return fmt.Errorf("unknown photo mode %q", o.PhotoMode)
	}
	for alias, status := range o.StatusAliases {
		if status != StatusAvailable && status != StatusUnavailable {
			return fmt.Errorf("status alias %q maps to unknown status %q", alias, status)
		}
	}
	return nil
}

// ParseStatus resolves the canonical status named by s. Besides the
// canonical spellings it understands the keywords "available" and
// "unavailable".
func ParseStatus(s string) (Status, error) {
	key := foldKey(s)
	for alias, status := range DefaultStatusAliases() {
		if foldKey(alias) == key {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", strings.TrimSpace(s))
}
