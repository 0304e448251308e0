// Package normalize canonicalizes user-supplied strings before they are
// validated or stored.
package normalize

import "strings"

// LoginID trims and lowercases a login identifier.
func LoginID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FacilityCode trims and uppercases a facility code ("wlk " -> "WLK").
func FacilityCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidFacilityCode reports whether an already-normalized code is 3 or 4
// characters of A-Z and 0-9.
func ValidFacilityCode(code string) bool {
	if len(code) < 3 || len(code) > 4 {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
