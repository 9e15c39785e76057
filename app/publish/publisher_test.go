package publish

import (
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/rules"
)

func approvedRecord() *model.CollectedRecord {
	return &model.CollectedRecord{
		ID:          "r1",
		TaskID:      "task-1",
		SourceID:    "shop",
		Title:       "Widget",
		Description: "<p>Nice <strong>widget</strong></p>",
		Price:       100,
		Currency:    "USD",
		Stock:       0,
		Images:      []string{"https://shop.example.com/a.jpg"},
		Status:      model.RecordStatusApproved,
	}
}

func newTestPublisher() *Publisher {
	p := NewPublisher(rules.NewEngine())
	p.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestPublishRejectsUnapproved(t *testing.T) {
	p := newTestPublisher()

	for _, status := range []model.RecordStatus{
		model.RecordStatusDraft,
		model.RecordStatusPendingReview,
		model.RecordStatusRejected,
		model.RecordStatusPublished,
	} {
		t.Run(string(status), func(t *testing.T) {
			record := approvedRecord()
			record.Status = status

			_, _, err := p.Publish(record, model.PublishSettings{}, nil)
			if !errors.Is(err, model.ErrStateConflict) {
				t.Fatalf("Expected ErrStateConflict, got %v", err)
			}
			if record.Status != status {
				t.Errorf("Expected status to stay %s, got %s", status, record.Status)
			}
		})
	}
}

func TestPublishAppliesSettings(t *testing.T) {
	p := newTestPublisher()
	record := approvedRecord()

	settings := model.PublishSettings{
		PriceAdjustment:   model.PriceAdjustmentPercent,
		PriceValue:        15,
		Category:          "gadgets",
		Tags:              []string{"imported"},
		Inventory:         25,
		DescriptionFormat: FormatMarkdown,
	}

	catalog, warnings, err := p.Publish(record, settings, nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	if catalog.Price != 115 {
		t.Errorf("Expected price 115, got %v", catalog.Price)
	}
	if catalog.Category != "gadgets" || catalog.Inventory != 25 {
		t.Errorf("Defaults not applied: category=%q inventory=%d", catalog.Category, catalog.Inventory)
	}
	if len(catalog.Tags) != 1 || catalog.Tags[0] != "imported" {
		t.Errorf("Expected default tags, got %v", catalog.Tags)
	}
	if catalog.Description != "Nice **widget**" {
		t.Errorf("Expected markdown description, got %q", catalog.Description)
	}
	if catalog.RecordID != "r1" || catalog.ID == "" {
		t.Errorf("Unexpected identity: %+v", catalog)
	}
	if !catalog.PublishedAt.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected publish time %v", catalog.PublishedAt)
	}

	if record.Status != model.RecordStatusPublished {
		t.Errorf("Expected record published, got %s", record.Status)
	}
	if record.Price != 100 || record.Description != "<p>Nice <strong>widget</strong></p>" {
		t.Errorf("Record content changed: %+v", record)
	}
}

func TestPublishKeepsRecordValuesOverDefaults(t *testing.T) {
	p := newTestPublisher()
	record := approvedRecord()
	record.Category = "tools"
	record.Tags = []string{"steel"}
	record.Stock = 4

	catalog, _, err := p.Publish(record, model.PublishSettings{Category: "gadgets", Tags: []string{"x"}, Inventory: 9}, nil)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if catalog.Category != "tools" || catalog.Tags[0] != "steel" || catalog.Inventory != 4 {
		t.Errorf("Record values overridden: %+v", catalog)
	}
	if catalog.Description != record.Description {
		t.Errorf("Expected html description kept, got %q", catalog.Description)
	}
}

func TestPublishReappliesRules(t *testing.T) {
	p := newTestPublisher()
	record := approvedRecord()

	ruleSet := []model.BatchEditRule{{
		ID:      "markup",
		Name:    "markup",
		Enabled: true,
		Actions: []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price * 2"}},
	}}

	catalog, _, err := p.Publish(record, model.PublishSettings{PriceAdjustment: model.PriceAdjustmentFixed, PriceValue: -50}, ruleSet)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if catalog.Price != 150 {
		t.Errorf("Expected price 150, got %v", catalog.Price)
	}
	if record.Price != 100 || len(record.FilterResults) != 0 {
		t.Errorf("Rules leaked into the source record: %+v", record)
	}
}

func TestPublishValidatesSettings(t *testing.T) {
	p := newTestPublisher()
	record := approvedRecord()

	_, _, err := p.Publish(record, model.PublishSettings{PriceAdjustment: "double"}, nil)
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("Expected ErrValidation, got %v", err)
	}
	if record.Status != model.RecordStatusApproved {
		t.Errorf("Expected status unchanged, got %s", record.Status)
	}
}

func TestAdjustPrice(t *testing.T) {
	tests := []struct {
		name       string
		price      float64
		adjustment model.PriceAdjustment
		value      float64
		want       float64
	}{
		{"none", 19.999, model.PriceAdjustmentNone, 0, 20},
		{"percent up", 100, model.PriceAdjustmentPercent, 12.5, 112.5},
		{"percent down", 80, model.PriceAdjustmentPercent, -25, 60},
		{"fixed", 9.99, model.PriceAdjustmentFixed, 5, 14.99},
		{"never negative", 10, model.PriceAdjustmentFixed, -20, 0},
		{"percent floor", 10, model.PriceAdjustmentPercent, -150, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdjustPrice(tt.price, tt.adjustment, tt.value); got != tt.want {
				t.Errorf("AdjustPrice(%v, %s, %v) = %v, want %v", tt.price, tt.adjustment, tt.value, got, tt.want)
			}
		})
	}
}
