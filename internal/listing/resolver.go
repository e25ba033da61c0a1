package listing

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const photosField = "photos"

var photosAliases = []string{photosField, "fotos"}

// Resolution is the outcome of reconciling photo sources for one record.
type Resolution struct {
	Photos PhotoSet
	// HasPhotos reports whether any slot ended up occupied.
	HasPhotos bool
	// Dropped lists references beyond the slot capacity, in received order.
	Dropped []string
	// Released lists previously stored references no longer in Photos.
	Released []string
}

// Resolver builds the final photo set of a listing from uploads, body URLs
// and the previously stored photos.
type Resolver struct {
	opts       Options
	slotFields map[string]int
	slotNames  [][]string
}

// NewResolver returns a resolver for opts. opts must be valid.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{opts: opts, slotFields: map[string]int{}}
	for i := 0; i < opts.MaxPhotoSlots; i++ {
		names := []string{SlotField(i), fmt.Sprintf("foto%02d", i+1)}
		for _, name := range names {
			r.slotFields[name] = i
		}
		r.slotNames = append(r.slotNames, names)
	}
	return r
}

// SlotField is the canonical field name of the zero-based slot.
func SlotField(slot int) string {
	return fmt.Sprintf("photo%02d", slot+1)
}

// IsPhotoField reports whether files received on field are listing photos
// under the configured mode.
func (r *Resolver) IsPhotoField(field string) bool {
	switch r.opts.PhotoMode {
	case PhotoModeSlots:
		_, ok := r.slotFields[field]
		return ok
	case PhotoModeArray:
		for _, name := range photosAliases {
			if name == field {
				return true
			}
		}
	}
	return false
}

// CanonicalField maps a photo field alias to the name used in errors.
func (r *Resolver) CanonicalField(field string) string {
	if slot, ok := r.slotFields[field]; ok && r.opts.PhotoMode == PhotoModeSlots {
		return SlotField(slot)
	}
	if r.opts.PhotoMode == PhotoModeArray && r.IsPhotoField(field) {
		return photosField
	}
	return field
}

// MultipleFilesPerField reports whether a photo field may carry more than one file.
func (r *Resolver) MultipleFilesPerField() bool {
	return r.opts.PhotoMode == PhotoModeArray
}

// Resolve reconciles the photo sources. previous is nil when creating.
func (r *Resolver) Resolve(uploads []Upload, fields map[string]any, previous *PhotoSet) (Resolution, []FieldError) {
	var (
		res  Resolution
		errs []FieldError
	)
	switch r.opts.PhotoMode {
	case PhotoModeSlots:
		errs = r.resolveSlots(&res, uploads, fields, previous)
	case PhotoModeArray:
		errs = r.resolveArray(&res, uploads, fields, previous)
	default:
		if previous != nil {
			res.Photos = *previous
		}
	}

	res.HasPhotos = res.Photos.HasAny()
	if r.opts.RequireAtLeastOnePhoto && !res.HasPhotos {
		errs = append(errs, FieldError{Field: photosField, Reason: reasonNeedsPhoto})
	}

	if previous != nil {
		seen := map[string]bool{}
		for _, ref := range previous.Refs() {
			if seen[ref] || res.Photos.Contains(ref) {
				continue
			}
			seen[ref] = true
			res.Released = append(res.Released, ref)
		}
	}
	return res, errs
}

func (r *Resolver) resolveSlots(res *Resolution, uploads []Upload, fields map[string]any, previous *PhotoSet) []FieldError {
	var errs []FieldError
	if previous != nil {
		res.Photos = *previous
	}

	uploaded := map[int]string{}
	for _, u := range uploads {
		slot, ok := r.slotFields[u.Field]
		if !ok {
			continue
		}
		if _, taken := uploaded[slot]; taken {
			res.Dropped = append(res.Dropped, u.Ref)
			continue
		}
		uploaded[slot] = u.Ref
	}

	for slot := 0; slot < r.opts.MaxPhotoSlots; slot++ {
		if ref, ok := uploaded[slot]; ok {
			res.Photos[slot] = &ref
			continue
		}
		raw, ok := lookup(fields, r.slotNames[slot]...)
		if !ok {
			continue
		}
		ref, cleared, reason := photoRef(raw)
		switch {
		case reason != "":
			errs = append(errs, FieldError{Field: SlotField(slot), Reason: reason})
		case cleared:
			res.Photos[slot] = nil
		default:
			res.Photos[slot] = &ref
		}
	}
	return errs
}

func (r *Resolver) resolveArray(res *Resolution, uploads []Upload, fields map[string]any, previous *PhotoSet) []FieldError {
	var (
		refs []string
		errs []FieldError
	)
	raw, supplied := lookup(fields, photosAliases...)
	if supplied {
		urls, ok := photoList(raw)
		if !ok {
			return []FieldError{{Field: photosField, Reason: reasonPhotoURL}}
		}
		for _, u := range urls {
			ref, cleared, reason := photoRef(u)
			if reason != "" {
				errs = append(errs, FieldError{Field: photosField, Reason: reason})
				break
			}
			if !cleared {
				refs = append(refs, ref)
			}
		}
	}
	for _, u := range uploads {
		if r.IsPhotoField(u.Field) {
			refs = append(refs, u.Ref)
			supplied = true
		}
	}

	if !supplied {
		if previous != nil {
			res.Photos = *previous
		}
		return errs
	}
	for i, ref := range refs {
		if i >= r.opts.MaxPhotoSlots {
			res.Dropped = append(res.Dropped, refs[i:]...)
			break
		}
		res.Photos[i] = &ref
	}
	return errs
}

// photoList accepts a single URL, a list of URLs or a JSON encoded list.
func photoList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case []any:
		return v, true
	case []string:
		var out []any
		for _, s := range v {
			items, ok := photoList(s)
			if !ok {
				return nil, false
			}
			out = append(out, items...)
		}
		return out, true
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			var list []string
			if err := json.Unmarshal([]byte(s), &list); err != nil {
				return nil, false
			}
			out := make([]any, 0, len(list))
			for _, item := range list {
				out = append(out, item)
			}
			return out, true
		}
		return []any{s}, true
	default:
		return nil, false
	}
}

// photoRef validates a body supplied photo reference. An empty value or the
// literal "null" clears the slot.
func photoRef(raw any) (string, bool, string) {
	if raw == nil {
		return "", true, ""
	}
	s, ok := raw.(string)
	if !ok {
		if list, isList := raw.([]string); isList && len(list) > 0 {
			s = list[0]
		} else {
			return "", false, reasonPhotoURL
		}
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return "", true, ""
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return s, false, ""
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false, reasonPhotoURL
	}
	return s, false, ""
}
