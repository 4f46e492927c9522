// Package transcript normalizes recognized speech text for display and for
// building asset names.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CapFirst collapses whitespace and upper-cases the first rune.
func CapFirst(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(normalized)
	return string(unicode.ToUpper(r)) + normalized[size:]
}

var icelandicASCII = strings.NewReplacer(
	"ð", "d", "Ð", "D",
	"á", "a", "Á", "A",
	"ú", "u", "Ú", "U",
	"í", "i", "Í", "I",
	"é", "e", "É", "E",
	"þ", "th", "Þ", "TH",
	"ó", "o", "Ó", "O",
	"ý", "y", "Ý", "Y",
	"ö", "o", "Ö", "O",
	"æ", "ae", "Æ", "AE",
)

// Asciify replaces Icelandic letters with their ASCII transliteration.
func Asciify(text string) string {
	return icelandicASCII.Replace(text)
}
