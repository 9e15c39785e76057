package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/listing-comb/app/model"
)

const (
	TypePlatform = "platform"
	TypeRegion   = "region"
	TypeCarrier  = "carrier"
	TypeCustom   = "custom"
	TypePhone    = "phone"
	TypeEmail    = "email"
	TypeURL      = "url"

	flagOpen  = "[["
	flagClose = "]]"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'\[\]]+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?(?:\d{1,3}[ -]?)?(?:\(\d{2,4}\)[ -]?|\d{2,4}[ -])?\d{3,4}[ -]?\d{4}|1[3-9]\d{9}`)
	flagSpan     = regexp.MustCompile(`\[\[.*?\]\]`)
	spaceRun     = regexp.MustCompile(`[ \t]{2,}`)
)

type keywordGroup struct {
	kind  string
	terms []string
}

type redaction struct {
	kind    string
	pattern *regexp.Regexp
	accept  func(text string, m []int) bool
}

// Filterer strips contact details and blocked vocabulary from scraped text.
type Filterer struct {
	now func() time.Time
}

func NewFilterer() *Filterer {
	return &Filterer{now: time.Now}
}

// Validate rejects configs whose replacements would re-introduce a blocked term,
// which would make the filter non-terminating.
func Validate(cfg model.ContentFilterConfig) error {
	for _, group := range keywordGroups(cfg) {
		for _, term := range group.terms {
			for key, replacement := range cfg.Replacements {
				if replacement == "" {
					continue
				}
				if containsTerm(replacement, term, cfg.CaseSensitive) {
					return fmt.Errorf("%w: replacement for '%s' contains blocked term '%s'", model.ErrValidation, key, term)
				}
			}
		}
	}
	return nil
}

// Run filters text belonging to field. Keyword removal runs before pattern
// redaction, and the whole sequence repeats until nothing changes, so running the
// filter again on its own output yields no further results.
func (f *Filterer) Run(field, text string, cfg model.ContentFilterConfig) (string, []model.FilterResult) {
	if text == "" {
		return text, nil
	}

	// Removals shrink the text, so len(text)+1 passes always reach the fixpoint;
	// only replacements that regrow a term can hit the limit.
	limit := len(text) + 1

	var results []model.FilterResult
	for pass := 0; ; pass++ {
		next, passResults := f.runPass(field, text, cfg)
		if len(passResults) == 0 {
			break
		}
		if pass == limit {
			slog.Warn("Content filter did not settle", "field", field, "passes", pass)
			break
		}
		results = append(results, passResults...)
		text = next
	}

	return text, results
}

// RunRecord filters a record's title and description in place and appends the
// audit entries to its FilterResults.
func (f *Filterer) RunRecord(record *model.CollectedRecord, cfg model.ContentFilterConfig) int {
	if !cfg.Enabled {
		return 0
	}

	title, titleResults := f.Run("title", record.Title, cfg)
	description, descriptionResults := f.Run("description", record.Description, cfg)

	record.Title = title
	record.Description = description
	record.FilterResults = append(record.FilterResults, titleResults...)
	record.FilterResults = append(record.FilterResults, descriptionResults...)

	return len(titleResults) + len(descriptionResults)
}

func (f *Filterer) runPass(field, text string, cfg model.ContentFilterConfig) (string, []model.FilterResult) {
	var results []model.FilterResult

	for _, group := range keywordGroups(cfg) {
		for _, term := range group.terms {
			re := termPattern(term, cfg.CaseSensitive)
			replacement, hasReplacement := lookupReplacement(cfg.Replacements, term)
			action := model.FilterActionRemoved
			if hasReplacement && replacement != "" {
				action = model.FilterActionReplaced
			}

			text = f.replaceOutsideFlags(text, cfg, re, nil, func(match string) string {
				results = append(results, f.result(group.kind, field, match, replacement, action))
				return replacement
			})
		}
	}

	for _, r := range redactions(cfg) {
		text = f.replaceOutsideFlags(text, cfg, r.pattern, r.accept, func(match string) string {
			if cfg.FlagPatterns {
				marked := flagOpen + match + flagClose
				results = append(results, f.result(r.kind, field, match, marked, model.FilterActionFlagged))
				return marked
			}
			results = append(results, f.result(r.kind, field, match, "", model.FilterActionRemoved))
			return ""
		})
	}

	if len(results) > 0 {
		text = tidy(text)
	}

	return text, results
}

// replaceOutsideFlags substitutes every match of re that does not overlap a
// span flagged by this filter.
func (f *Filterer) replaceOutsideFlags(text string, cfg model.ContentFilterConfig, re *regexp.Regexp, accept func(string, []int) bool, replace func(string) string) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	flagged := flaggedSpans(text, cfg)

	var b strings.Builder
	last := 0
	replaced := false
	for _, m := range matches {
		if overlaps(m, flagged) {
			continue
		}
		if accept != nil && !accept(text, m) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(replace(text[m[0]:m[1]]))
		last = m[1]
		replaced = true
	}
	if !replaced {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// flaggedSpans returns the [[...]] spans whose whole content is a match of an
// active redaction pattern, which is exactly what flag mode produces. Any other
// bracketed text is filtered like the rest of the input.
func flaggedSpans(text string, cfg model.ContentFilterConfig) [][]int {
	if !cfg.FlagPatterns {
		return nil
	}

	var spans [][]int
	for _, span := range flagSpan.FindAllStringIndex(text, -1) {
		content := text[span[0]+len(flagOpen) : span[1]-len(flagClose)]
		for _, r := range redactions(cfg) {
			m := r.pattern.FindStringIndex(content)
			if m == nil || m[0] != 0 || m[1] != len(content) {
				continue
			}
			if r.accept != nil && !r.accept(content, m) {
				continue
			}
			spans = append(spans, span)
			break
		}
	}
	return spans
}

func (f *Filterer) result(kind, field, original, result string, action model.FilterAction) model.FilterResult {
	return model.FilterResult{
		Type:      kind,
		Field:     field,
		Original:  original,
		Result:    result,
		Action:    action,
		CreatedAt: f.now().UTC(),
	}
}

func keywordGroups(cfg model.ContentFilterConfig) []keywordGroup {
	groups := []keywordGroup{
		{kind: TypePlatform, terms: cleanTerms(cfg.PlatformNames)},
		{kind: TypeRegion, terms: cleanTerms(cfg.RegionNames)},
		{kind: TypeCarrier, terms: cleanTerms(cfg.CarrierNames)},
		{kind: TypeCustom, terms: cleanTerms(cfg.Blocklist)},
	}
	return groups
}

// cleanTerms drops blanks and orders terms longest first so "Taobao Mall" is
// removed before "Taobao" can split it.
func cleanTerms(terms []string) []string {
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term != "" {
			cleaned = append(cleaned, term)
		}
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})
	return cleaned
}

func redactions(cfg model.ContentFilterConfig) []redaction {
	var list []redaction
	// URLs go first so the phone pattern never eats digits out of a link.
	if cfg.RemoveURLs {
		list = append(list, redaction{kind: TypeURL, pattern: urlPattern})
	}
	if cfg.RemoveEmails {
		list = append(list, redaction{kind: TypeEmail, pattern: emailPattern})
	}
	if cfg.RemovePhones {
		list = append(list, redaction{kind: TypePhone, pattern: phonePattern, accept: plausiblePhone})
	}
	return list
}

// plausiblePhone rejects digit runs embedded in longer numbers or words, such as
// product ids, and anything outside the 7-15 digit range of dialable numbers.
func plausiblePhone(text string, m []int) bool {
	if m[0] > 0 && isWordByte(text[m[0]-1]) {
		return false
	}
	if m[1] < len(text) && isWordByte(text[m[1]]) {
		return false
	}

	digits := 0
	for _, r := range text[m[0]:m[1]] {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

func isWordByte(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func termPattern(term string, caseSensitive bool) *regexp.Regexp {
	if caseSensitive {
		return regexp.MustCompile(regexp.QuoteMeta(term))
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
}

func containsTerm(text, term string, caseSensitive bool) bool {
	return termPattern(term, caseSensitive).MatchString(text)
}

func lookupReplacement(replacements map[string]string, term string) (string, bool) {
	if v, ok := replacements[term]; ok {
		return v, true
	}
	for k, v := range replacements {
		if strings.EqualFold(k, term) {
			return v, true
		}
	}
	return "", false
}

func overlaps(m []int, spans [][]int) bool {
	for _, s := range spans {
		if m[0] < s[1] && s[0] < m[1] {
			return true
		}
	}
	return false
}

func tidy(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
