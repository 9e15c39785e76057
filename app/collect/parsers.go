package collect

import (
	"bytes"
	"strings"

	"github.com/lysyi3m/listing-comb/app/model"
)

type parserEntry struct {
	name    string
	matches func(src *model.Source, resp *FetchResponse) bool
	parser  Parser
}

// Parsers picks a Parser for a fetched page by walking its entries in order. A new
// page shape needs only a new entry.
type Parsers struct {
	entries []parserEntry
}

func NewParsers() *Parsers {
	return &Parsers{
		entries: []parserEntry{
			{name: "feed", matches: isFeed, parser: NewFeedParser()},
			{name: "article", matches: isKind(model.SourceKindNews), parser: NewArticleParser()},
			{name: "product", matches: isKind(model.SourceKindProduct), parser: NewHTMLProductParser()},
		},
	}
}

// Register adds a parser ahead of the built-in ones.
func (p *Parsers) Register(name string, matches func(*model.Source, *FetchResponse) bool, parser Parser) {
	p.entries = append([]parserEntry{{name: name, matches: matches, parser: parser}}, p.entries...)
}

func (p *Parsers) For(src *model.Source, resp *FetchResponse) (Parser, string) {
	for _, e := range p.entries {
		if e.matches(src, resp) {
			return e.parser, e.name
		}
	}
	return NewHTMLProductParser(), "product"
}

func isKind(kind model.SourceKind) func(*model.Source, *FetchResponse) bool {
	return func(src *model.Source, _ *FetchResponse) bool {
		return src != nil && src.Kind == kind
	}
}

func isFeed(src *model.Source, resp *FetchResponse) bool {
	if src != nil && src.ID == "rss" {
		return true
	}
	if resp == nil {
		return false
	}

	ct := strings.ToLower(resp.ContentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	if strings.Contains(ct, "xml") {
		head := bytes.ToLower(resp.Body[:min(len(resp.Body), 512)])
		return bytes.Contains(head, []byte("<rss")) || bytes.Contains(head, []byte("<feed"))
	}
	return false
}
