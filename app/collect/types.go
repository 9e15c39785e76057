package collect

import (
	"github.com/lysyi3m/listing-comb/app/model"
)

// RawRecord is what a parser extracts from one page before normalization. It is
// also the opaque payload kept on the stored record for audit.
type RawRecord struct {
	URL           string            `json:"url,omitempty"`
	ExternalID    string            `json:"externalId,omitempty"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Price         float64           `json:"price,omitempty"`
	OriginalPrice float64           `json:"originalPrice,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Stock         int               `json:"stock,omitempty"`
	Images        []string          `json:"images,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Category      string            `json:"category,omitempty"`
	Variants      []model.Variant   `json:"variants,omitempty"`
	Shipping      *model.Shipping   `json:"shipping,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Parser turns a fetched body into a RawRecord. Markup that matches no known
// extraction pattern yields an error wrapping model.ErrParse.
type Parser interface {
	Parse(body []byte, src *model.Source) (*RawRecord, error)
}

// ItemResult is the outcome of collecting one URL.
type ItemResult struct {
	URL      string
	Record   *model.CollectedRecord
	Err      error
	Attempts int
}

// Sink receives item results from a running pipeline. Active is consulted before
// every dispatch; once it reports false no new URL is started.
type Sink interface {
	Active() bool
	Deliver(result ItemResult)
}
