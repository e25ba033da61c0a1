package listing

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// plainDecimal matches the only text forms accepted for numeric fields:
// optionally signed base-10 digits with an optional fractional part.
var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// foldKey lowercases s and strips accents so alias lookups ignore both.
func foldKey(s string) string {
	t := norm.NFD.String(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range t {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup returns the first of keys present in fields.
func lookup(fields map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// asString renders a scalar raw value as text. Repeated form fields yield
// their first value.
func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []string:
		if len(v) == 0 {
			return "", true
		}
		return v[0], true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// isBlank reports whether raw carries no value at all.
func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := asString(raw)
	return ok && strings.TrimSpace(s) == ""
}

// parseInt converts raw to an int. It never falls back to zero: the second
// result is a failure reason whenever the value is not a whole number.
func parseInt(raw any) (int, string) {
	if isBlank(raw) {
		return 0, reasonRequired
	}
	switch v := raw.(type) {
	case int:
		return v, ""
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, reasonInteger
		}
		return int(v), ""
	case float64:
		return wholeNumber(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, reasonInteger
		}
		return wholeNumber(f)
	}
	s, ok := asString(raw)
	if !ok {
		return 0, reasonInteger
	}
	s = strings.TrimSpace(s)
	if !plainDecimal.MatchString(s) {
		return 0, reasonInteger
	}
	if n, err := strconv.ParseInt(s, 10, 0); err == nil {
		return int(n), ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, reasonInteger
	}
	return wholeNumber(f)
}

func wholeNumber(f float64) (int, string) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, reasonInteger
	}
	if f < math.MinInt || f >= math.MaxInt {
		return 0, reasonInteger
	}
	return int(f), ""
}

// parseDecimal converts raw to a finite float64.
func parseDecimal(raw any) (float64, string) {
	if isBlank(raw) {
		return 0, reasonRequired
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, reasonNumber
		}
		f = parsed
	default:
		s, ok := asString(raw)
		if !ok {
			return 0, reasonNumber
		}
		s = strings.TrimSpace(s)
		if !plainDecimal.MatchString(s) {
			return 0, reasonNumber
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, reasonNumber
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, reasonNumber
	}
	return f, ""
}

// parser reads typed values out of raw fields and collects one failure per
// field. When creating, absent required fields fail; when updating, absent
// fields keep the value passed in as current.
type parser struct {
	fields   map[string]any
	creating bool
	errs     []FieldError
	failed   map[string]bool
}

func newParser(fields map[string]any, creating bool) *parser {
	if fields == nil {
		fields = map[string]any{}
	}
	return &parser{fields: fields, creating: creating, failed: map[string]bool{}}
}

func (p *parser) fail(field, reason string) {
	if p.failed[field] {
		return
	}
	p.failed[field] = true
	p.errs = append(p.errs, FieldError{Field: field, Reason: reason})
}

func (p *parser) absent(field string, required bool) {
	if p.creating && required {
		p.fail(field, reasonRequired)
	}
}

func (p *parser) text(current string, required bool, field string, aliases ...string) string {
	raw, ok := lookup(p.fields, append([]string{field}, aliases...)...)
	if !ok {
		p.absent(field, required)
		return current
	}
	if raw == nil {
		return ""
	}
	s, ok := asString(raw)
	if !ok {
		p.fail(field, reasonText)
		return current
	}
	return strings.TrimSpace(s)
}

func (p *parser) optionalText(current *string, field string, aliases ...string) *string {
	raw, ok := lookup(p.fields, append([]string{field}, aliases...)...)
	if !ok {
		return current
	}
	if isBlank(raw) {
		return nil
	}
	s, ok := asString(raw)
	if !ok {
		p.fail(field, reasonText)
		return current
	}
	s = strings.TrimSpace(s)
	return &s
}

func (p *parser) integer(current int, field string, aliases ...string) int {
	raw, ok := lookup(p.fields, append([]string{field}, aliases...)...)
	if !ok {
		p.absent(field, true)
		return current
	}
	n, reason := parseInt(raw)
	if reason != "" {
		p.fail(field, reason)
		return current
	}
	return n
}

func (p *parser) optionalInteger(current *int, field string, aliases ...string) *int {
	raw, ok := lookup(p.fields, append([]string{field}, aliases...)...)
	if !ok {
		return current
	}
	if isBlank(raw) {
		return nil
	}
	n, reason := parseInt(raw)
	if reason != "" {
		p.fail(field, reason)
		return current
	}
	return &n
}

func (p *parser) decimal(current float64, field string, aliases ...string) float64 {
	raw, ok := lookup(p.fields, append([]string{field}, aliases...)...)
	if !ok {
		p.absent(field, true)
		return current
	}
	f, reason := parseDecimal(raw)
	if reason != "" {
		p.fail(field, reason)
		return current
	}
	return f
}
