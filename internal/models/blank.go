package models

import (
	"fmt"
	"strings"
)

// IsBlank reports whether a tag or field value carries no information. Only nil
// (absent or JSON null) and whitespace-only strings are blank; "0", 0, false and
// empty lists all count as values.
func IsBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case *string:
		return val == nil || strings.TrimSpace(*val) == ""
	default:
		return false
	}
}

// Tags holds the free-form tag set attached to alerts and incidents.
type Tags map[string]any

// Has reports whether the tag key is present, regardless of its value.
func (t Tags) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Blank applies IsBlank to the named tag; absent tags are blank.
func (t Tags) Blank(name string) bool {
	return IsBlank(t[name])
}

// Equals reports whether the named tag is the exact string want.
func (t Tags) Equals(name, want string) bool {
	s, ok := t[name].(string)
	return ok && s == want
}

// String renders the named tag as text. Absent and null tags render as "".
func (t Tags) String(name string) string {
	switch val := t[name].(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
