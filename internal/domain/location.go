package domain

import (
	"strings"
	"unicode"
)

// NormalizeLocationKey turns free-form location text into the key used by
// the fetch cache: whitespace removed, upper case.
func NormalizeLocationKey(location string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, location))
}
