package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark to strip.
var special = strings.NewReplacer(
	"ı", "i",
	"ß", "ss",
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ł", "l",
	"đ", "d",
	"&", " and ",
)

// Generate creates a URL-friendly slug from name, folding accented letters
// to ASCII.
//
//	"Kadın Giyim"        → "kadin-giyim"
//	"Çocuk Ürünleri"     → "cocuk-urunleri"
//	"Home & Garden"      → "home-and-garden"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
