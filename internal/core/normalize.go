package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer canonicalizes free-text identifiers used as natural keys.
type Normalizer struct {
	TitleCase bool
}

// String trims s and, when TitleCase is set, title-cases it ("acme FOUNDATION" -> "Acme Foundation").
func (n Normalizer) String(s string) string {
	s = strings.TrimSpace(s)
	if !n.TitleCase || s == "" {
		return s
	}
	return cases.Title(language.Und).String(s)
}

// Value normalizes string values and leaves everything else, including nil, untouched.
func (n Normalizer) Value(v any) any {
	switch s := v.(type) {
	case string:
		return n.String(s)
	case *string:
		if s == nil {
			return nil
		}
		return n.String(*s)
	default:
		return v
	}
}

// Trim is the non-key policy: whitespace only, casing preserved.
func Trim(v any) any {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case *string:
		if s == nil {
			return nil
		}
		return strings.TrimSpace(*s)
	default:
		return v
	}
}

// SameName compares two identifiers the way uniqueness checks do.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
