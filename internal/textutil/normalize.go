package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey canonicalizes an identifier used as a database key.
// Hangul typed on different platforms may arrive decomposed; NFC keeps
// one byte sequence per identifier.
func NormalizeKey(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// SplitLots splits a composite lot field on commas and normalizes each
// entry, dropping empties. Stations historically submit multiple
// sub-lots as one comma-joined string.
func SplitLots(value string) []string {
	parts := strings.Split(value, ",")
	lots := make([]string, 0, len(parts))
	for _, part := range parts {
		lot := NormalizeKey(part)
		if lot == "" {
			continue
		}
		lots = append(lots, lot)
	}
	return lots
}
