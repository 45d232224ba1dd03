package service

import (
	"strings"
	"unicode"
)

// Slugify lower-cases name and joins its letter and digit runs with
// dashes: "The Forest Hiker" becomes "the-forest-hiker".
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
