package utils

import (
	"regexp"
	"strings"
)

var (
	umlauts  = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify turns a template name into an id fragment. German umlauts are
// spelled out, so "Geschäftsführer" becomes "geschaeftsfuehrer".
func Slugify(s string) string {
	s = umlauts.Replace(strings.ToLower(s))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
