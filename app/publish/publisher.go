package publish

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"

	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/rules"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Publisher turns approved records into catalog records.
type Publisher struct {
	engine    *rules.Engine
	converter *md.Converter
	now       func() time.Time
}

func NewPublisher(engine *rules.Engine) *Publisher {
	return &Publisher{
		engine:    engine,
		converter: md.NewConverter("", true, nil),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func ValidateSettings(settings model.PublishSettings) error {
	switch settings.PriceAdjustment {
	case model.PriceAdjustmentNone, model.PriceAdjustmentPercent, model.PriceAdjustmentFixed:
	default:
		return fmt.Errorf("%w: unknown price adjustment %q", model.ErrValidation, settings.PriceAdjustment)
	}

	switch settings.DescriptionFormat {
	case "", FormatHTML, FormatMarkdown:
	default:
		return fmt.Errorf("%w: unknown description format %q", model.ErrValidation, settings.DescriptionFormat)
	}

	if settings.Inventory < 0 {
		return fmt.Errorf("%w: inventory must not be negative", model.ErrValidation)
	}
	return nil
}

// Publish builds a catalog record from an approved record. ruleSet is applied to
// the catalog copy only; the record itself just moves to published. On error the
// record is left untouched.
func (p *Publisher) Publish(record *model.CollectedRecord, settings model.PublishSettings, ruleSet []model.BatchEditRule) (*model.CatalogRecord, []string, error) {
	if record.Status != model.RecordStatusApproved {
		return nil, nil, fmt.Errorf("%w: record %s is %s, only approved records can be published", model.ErrStateConflict, record.ID, record.Status)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, nil, err
	}

	working := record
	var warnings []string
	if len(ruleSet) > 0 {
		outcome := p.engine.ApplyRules(record, ruleSet)
		working = outcome.Record
		warnings = outcome.Warnings
	}

	description := working.Description
	if settings.DescriptionFormat == FormatMarkdown {
		converted, err := p.converter.ConvertString(description)
		if err != nil {
			return nil, warnings, fmt.Errorf("failed to convert description of %s: %w", record.ID, err)
		}
		description = converted
	}

	inventory := working.Stock
	if inventory <= 0 {
		inventory = settings.Inventory
	}

	tags := slices.Clone(working.Tags)
	if len(tags) == 0 {
		tags = slices.Clone(settings.Tags)
	}

	catalog := &model.CatalogRecord{
		ID:          uuid.NewString(),
		RecordID:    record.ID,
		SourceID:    record.SourceID,
		Title:       strings.TrimSpace(working.Title),
		Description: description,
		Price:       AdjustPrice(working.Price, settings.PriceAdjustment, settings.PriceValue),
		Currency:    working.Currency,
		Category:    cmp.Or(working.Category, settings.Category),
		Tags:        tags,
		Inventory:   inventory,
		Images:      slices.Clone(working.Images),
		PublishedAt: p.now(),
	}

	if err := record.AdvanceStatus(model.RecordStatusPublished); err != nil {
		return nil, warnings, err
	}
	record.UpdatedAt = catalog.PublishedAt

	return catalog, warnings, nil
}

// AdjustPrice applies a percentage or fixed delta, rounds to cents and never
// goes below zero.
func AdjustPrice(price float64, adjustment model.PriceAdjustment, value float64) float64 {
	switch adjustment {
	case model.PriceAdjustmentPercent:
		price = price * (1 + value/100)
	case model.PriceAdjustmentFixed:
		price = price + value
	}

	price = math.Round(price*100) / 100
	if price <= 0 {
		return 0
	}
	return price
}
