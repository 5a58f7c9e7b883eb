// Package cli provides CLI infrastructure for tdmcli.
package cli

import (
	"strings"
)

// MatchName finds a unique template name from a prefix.
// An exact match (case-insensitive) always wins; otherwise the prefix must
// select exactly one name.
func MatchName(prefix string, names []string) (string, error) {
	lower := strings.ToLower(prefix)

	// First check for exact match
	for _, name := range names {
		if strings.ToLower(name) == lower {
			return name, nil
		}
	}

	// Check for prefix match
	var matches []string
	for _, name := range names {
		if strings.HasPrefix(strings.ToLower(name), lower) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Type: "template", ID: prefix}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Prefix: prefix, Matches: matches}
	}
}
