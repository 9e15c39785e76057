package filter

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans scraped markup before it reaches the keyword filter. Titles are
// reduced to plain text; descriptions keep the safe subset of user-generated markup.
type Sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	ugc := bluemonday.UGCPolicy()
	ugc.RequireNoFollowOnLinks(true)
	ugc.AllowImages()

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    ugc,
	}
}

func (s *Sanitizer) Text(input string) string {
	cleaned := s.strict.Sanitize(input)
	return strings.Join(strings.Fields(html.UnescapeString(cleaned)), " ")
}

func (s *Sanitizer) HTML(input string) string {
	return strings.TrimSpace(s.ugc.Sanitize(input))
}
