package collect

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/listing-comb/app/model"
)

// FeedParser turns the newest entry of an RSS, Atom or JSON feed into a record.
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *FeedParser) Parse(body []byte, src *model.Source) (*RawRecord, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse feed: %v", model.ErrParse, err)
	}

	if len(feed.Items) == 0 || feed.Items[0] == nil {
		return nil, fmt.Errorf("%w: feed has no items", model.ErrParse)
	}
	item := feed.Items[0]

	raw := &RawRecord{
		URL:         strings.TrimSpace(item.Link),
		ExternalID:  cmp.Or(item.GUID, item.Link),
		Title:       strings.TrimSpace(item.Title),
		Description: cmp.Or(item.Content, item.Description),
		Tags:        item.Categories,
	}

	if item.Image != nil && item.Image.URL != "" {
		raw.Images = append(raw.Images, item.Image.URL)
	}
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") && !slices.Contains(raw.Images, enclosure.URL) {
			raw.Images = append(raw.Images, enclosure.URL)
		}
	}

	raw.Extra = map[string]string{"feedTitle": feed.Title}
	if item.PublishedParsed != nil {
		raw.Extra["publishedAt"] = item.PublishedParsed.UTC().Format("2006-01-02T15:04:05Z")
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		raw.Extra["author"] = item.Authors[0].Name
	}

	if raw.Title == "" && raw.Description == "" {
		return nil, fmt.Errorf("%w: feed item has neither title nor content", model.ErrParse)
	}

	return raw, nil
}
