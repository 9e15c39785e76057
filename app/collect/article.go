package collect

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/lysyi3m/listing-comb/app/model"
)

// ArticleParser extracts the main readable content of a news page.
type ArticleParser struct{}

func NewArticleParser() *ArticleParser {
	return &ArticleParser{}
}

func (p *ArticleParser) Parse(body []byte, src *model.Source) (*RawRecord, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: HTML data is empty", model.ErrParse)
	}

	article, err := readability.FromReader(bytes.NewReader(body), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract content: %v", model.ErrParse, err)
	}

	if strings.TrimSpace(article.Content) == "" {
		return nil, fmt.Errorf("%w: no content extracted from HTML data", model.ErrParse)
	}

	raw := &RawRecord{
		Title:       strings.TrimSpace(article.Title),
		Description: article.Content,
	}
	if article.Image != "" {
		raw.Images = []string{article.Image}
	}
	if article.Byline != "" || article.SiteName != "" || article.Excerpt != "" {
		raw.Extra = map[string]string{}
		if article.Byline != "" {
			raw.Extra["byline"] = article.Byline
		}
		if article.SiteName != "" {
			raw.Extra["siteName"] = article.SiteName
		}
		if article.Excerpt != "" {
			raw.Extra["excerpt"] = article.Excerpt
		}
	}

	slog.Debug("Article extracted",
		"source", sourceID(src),
		"title", article.Title,
		"content_length", len(article.Content))

	return raw, nil
}

func sourceID(src *model.Source) string {
	if src == nil {
		return ""
	}
	return src.ID
}
