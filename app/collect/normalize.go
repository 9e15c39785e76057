package collect

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/listing-comb/app/filter"
	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/source"
)

// Normalizer maps a RawRecord onto the canonical record schema, sanitizes and
// filters its text, and enforces the task's price range and image policy.
type Normalizer struct {
	sanitizer *filter.Sanitizer
	filterer  *filter.Filterer
	now       func() time.Time
}

func NewNormalizer(sanitizer *filter.Sanitizer, filterer *filter.Filterer) *Normalizer {
	return &Normalizer{
		sanitizer: sanitizer,
		filterer:  filterer,
		now:       time.Now,
	}
}

func (n *Normalizer) Normalize(raw *RawRecord, task *model.CollectionTask, src *model.Source, pageURL string, detection source.Detection) (*model.CollectedRecord, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nothing extracted from %s", model.ErrParse, pageURL)
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw payload: %w", err)
	}

	now := n.now().UTC()
	record := &model.CollectedRecord{
		ID:            uuid.NewString(),
		TaskID:        task.ID,
		SourceID:      src.ID,
		Kind:          src.Kind,
		URL:           canonicalURL(pageURL, raw.URL),
		ExternalID:    firstNonEmpty(detection.ExternalID, raw.ExternalID),
		Title:         n.sanitizer.Text(raw.Title),
		Description:   n.sanitizer.HTML(raw.Description),
		Price:         roundPrice(raw.Price),
		OriginalPrice: roundPrice(raw.OriginalPrice),
		Currency:      strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Stock:         max(raw.Stock, 0),
		Images:        applyImagePolicy(resolveImages(pageURL, raw.Images), task.Settings.DownloadImages),
		Tags:          cleanTags(raw.Tags),
		Category:      n.sanitizer.Text(raw.Category),
		Variants:      raw.Variants,
		Shipping:      raw.Shipping,
		Raw:           payload,
		Status:        model.RecordStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if record.Title == "" {
		return nil, fmt.Errorf("%w: %s has no title", model.ErrParse, pageURL)
	}

	if src.Kind == model.SourceKindProduct {
		if err := checkPriceRange(record.Price, task.Settings); err != nil {
			return nil, err
		}
	}

	n.filterer.RunRecord(record, task.Settings.Filter)

	return record, nil
}

func checkPriceRange(price float64, settings model.CollectionSettings) error {
	if settings.MinPrice > 0 && price < settings.MinPrice {
		return fmt.Errorf("%w: price %.2f below minimum %.2f", model.ErrValidation, price, settings.MinPrice)
	}
	if settings.MaxPrice > 0 && price > settings.MaxPrice {
		return fmt.Errorf("%w: price %.2f above maximum %.2f", model.ErrValidation, price, settings.MaxPrice)
	}
	return nil
}

func roundPrice(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func canonicalURL(pageURL, declared string) string {
	if declared == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	ref, err := url.Parse(declared)
	if err != nil {
		return pageURL
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return pageURL
	}
	return resolved.String()
}

// resolveImages makes image URLs absolute against the page and drops duplicates
// and non-http references such as data: URIs.
func resolveImages(pageURL string, images []string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool, len(images))
	resolved := make([]string, 0, len(images))

	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		ref, err := url.Parse(img)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			continue
		}
		abs := ref.String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		resolved = append(resolved, abs)
	}

	return resolved
}

func applyImagePolicy(images []string, policy model.ImagePolicy) []string {
	switch policy {
	case model.ImagePolicyNone:
		return nil
	case model.ImagePolicyFirst:
		if len(images) > 1 {
			return images[:1]
		}
	}
	if len(images) == 0 {
		return nil
	}
	return images
}

func cleanTags(tags []string) []string {
	var cleaned []string
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, tag)
	}
	return cleaned
}
