// Package strings normalizes free-form labels (tags, field names) before they
// reach storage so that set semantics hold regardless of input casing or spacing.
package strings

import (
	"slices"
	"strings"
)

// NormalizeLabel trims and lower-cases a single label and collapses inner
// whitespace runs to a single underscore.
//
//	NormalizeLabel("  Daily  Rosary ") // "daily_rosary"
func NormalizeLabel(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), "_")
}

// NormalizeSet normalizes every label, drops empties and duplicates, and
// returns the result sorted.
//
//	NormalizeSet([]string{"  Baptism ", "confirmation", "BAPTISM", ""})
//	// []string{"baptism", "confirmation"}
func NormalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		label := NormalizeLabel(v)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		result = append(result, label)
	}
	slices.Sort(result)
	return result
}
