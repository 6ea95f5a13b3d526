package process

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 80

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a lowercase ASCII identifier of at most 80
// characters. Accents are stripped and other scripts are transliterated;
// remaining non-alphanumeric runs become a single dash. It returns "article" when nothing usable remains.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, title)
	if err != nil {
		ascii = title
	}
	ascii = unidecode.Unidecode(ascii)

	slug := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(ascii), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "article"
	}
	return slug
}
