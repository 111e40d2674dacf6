package slug

import (
	"strings"
	"unicode"
)

// MaxTagLen is the longest tag an item accepts.
const MaxTagLen = 20

var fold = map[rune]string{
	'ç': "c", 'ğ': "g", 'ı': "i", 'ö': "o", 'ş': "s", 'ü': "u",
	'à': "a", 'á': "a", 'â': "a", 'ä': "a", 'ã': "a", 'å': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ø': "o",
	'ù': "u", 'ú': "u", 'û': "u",
	'ñ': "n", 'ß': "ss", '&': "and", '+': "plus",
}

// Generate lowercases name, folds accented letters to ASCII and joins the
// remaining alphanumeric runs with single hyphens.
//
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Crème Brûlée" → "creme-brulee"
//   - "USB-C  Hub!" → "usb-c-hub"
func Generate(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingHyphen := false

	emit := func(s string) {
		if pendingHyphen && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingHyphen = false
		b.WriteString(s)
	}

	for _, r := range strings.ToLower(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if s, ok := fold[r]; ok {
			// Symbols spelled out as words stand apart from their neighbours.
			word := r == '&' || r == '+'
			pendingHyphen = pendingHyphen || word
			emit(s)
			pendingHyphen = word
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			emit(string(r))
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Tag returns the slug of s cut to at most MaxTagLen bytes. Longer slugs
// are cut at the last word boundary that fits.
func Tag(s string) string {
	t := Generate(s)
	if len(t) <= MaxTagLen {
		return t
	}
	if t[MaxTagLen] == '-' {
		return t[:MaxTagLen]
	}
	cut := t[:MaxTagLen]
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		return cut[:i]
	}
	return cut
}
