package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/lysyi3m/listing-comb/app/model"
)

func float(v float64) *float64 { return &v }

func sampleRecord() *model.CollectedRecord {
	return &model.CollectedRecord{
		ID:          "rec-1",
		SourceID:    "1688",
		Title:       "Cotton Summer Dress",
		Description: "Light cotton dress",
		Price:       100,
		Currency:    "CNY",
		Stock:       12,
		Tags:        []string{"summer", "dress"},
		Category:    "apparel",
	}
}

func TestEvaluate_Range(t *testing.T) {
	engine := NewEngine()
	cond := []model.RuleCondition{{Field: "price", Operator: model.OperatorRange, Min: float(100), Max: float(1000)}}

	tests := []struct {
		name   string
		record *model.CollectedRecord
		want   bool
	}{
		{"inside", &model.CollectedRecord{Price: 150}, true},
		{"lower bound inclusive", &model.CollectedRecord{Price: 100}, true},
		{"above", &model.CollectedRecord{Price: 1500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Evaluate(tt.record, cond); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}

	nonNumeric := []model.RuleCondition{{Field: "title", Operator: model.OperatorRange, Min: float(0)}}
	if engine.Evaluate(&model.CollectedRecord{Title: "abc"}, nonNumeric) {
		t.Error("Expected range on non-numeric value to be false")
	}
	if !engine.Evaluate(&model.CollectedRecord{Title: "42"}, nonNumeric) {
		t.Error("Expected range on numeric text to be true")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	engine := NewEngine()
	record := sampleRecord()

	tests := []struct {
		name string
		cond model.RuleCondition
		want bool
	}{
		{"equals numeric", model.RuleCondition{Field: "price", Operator: model.OperatorEquals, Value: "100.0"}, true},
		{"equals text strict", model.RuleCondition{Field: "category", Operator: model.OperatorEquals, Value: "Apparel"}, false},
		{"contains default case-insensitive", model.RuleCondition{Field: "title", Operator: model.OperatorContains, Value: "summer"}, true},
		{"contains case-sensitive", model.RuleCondition{Field: "title", Operator: model.OperatorContains, Value: "summer", CaseSensitive: true}, false},
		{"startsWith", model.RuleCondition{Field: "title", Operator: model.OperatorStartsWith, Value: "cotton"}, true},
		{"endsWith", model.RuleCondition{Field: "title", Operator: model.OperatorEndsWith, Value: "DRESS"}, true},
		{"regex", model.RuleCondition{Field: "description", Operator: model.OperatorRegex, Value: `^light\s+cotton`}, true},
		{"contains on tags", model.RuleCondition{Field: "tags", Operator: model.OperatorContains, Value: "summer"}, true},
		{"invalid regex", model.RuleCondition{Field: "title", Operator: model.OperatorRegex, Value: "("}, false},
		{"unknown field", model.RuleCondition{Field: "colour", Operator: model.OperatorEquals, Value: "red"}, false},
		{"unknown operator", model.RuleCondition{Field: "title", Operator: "like", Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Evaluate(record, []model.RuleCondition{tt.cond}); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}

	if !engine.Evaluate(record, nil) {
		t.Error("Expected empty condition list to match")
	}
}

func TestApply_Calculate(t *testing.T) {
	engine := NewEngine()
	record := &model.CollectedRecord{Price: 100}

	result, warnings := engine.Apply(record, []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price * 1.2"}})

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
	if result.Price != 120 {
		t.Errorf("Expected price 120, got %v", result.Price)
	}
	if record.Price != 100 {
		t.Errorf("Expected input record unchanged, got %v", record.Price)
	}
}

func TestApply_CalculateRejectsInjection(t *testing.T) {
	engine := NewEngine()
	record := &model.CollectedRecord{ID: "rec-1", Price: 100}

	result, warnings := engine.Apply(record, []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price; drop"}})
	if result.Price != 100 {
		t.Errorf("Expected price unchanged, got %v", result.Price)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "price") {
		t.Errorf("Expected 1 warning naming the price action, got %v", warnings)
	}

	rule := model.BatchEditRule{
		ID:      "r1",
		Name:    "inject",
		Enabled: true,
		Actions: []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price; drop"}},
	}
	outcome := engine.ApplyRules(record, []model.BatchEditRule{rule})
	if outcome.Record.Price != 100 {
		t.Errorf("Expected price unchanged, got %v", outcome.Record.Price)
	}
	if len(outcome.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", outcome.Warnings)
	}
	if len(outcome.Changes) != 0 {
		t.Errorf("Expected no changes, got %+v", outcome.Changes)
	}
}

func TestApply_ActionOrderMatters(t *testing.T) {
	engine := NewEngine()
	record := &model.CollectedRecord{Title: "abc"}

	replace := model.RuleAction{Type: model.ActionReplace, Field: "title", Value: "b", Replacement: "x"}
	appendB := model.RuleAction{Type: model.ActionAppend, Field: "title", Value: "b"}

	forward, _ := engine.Apply(record, []model.RuleAction{replace, appendB})
	reverse, _ := engine.Apply(record, []model.RuleAction{appendB, replace})

	if forward.Title != "axcb" {
		t.Errorf("Expected 'axcb', got '%s'", forward.Title)
	}
	if reverse.Title != "axcx" {
		t.Errorf("Expected 'axcx', got '%s'", reverse.Title)
	}
}

func TestApply_Deterministic(t *testing.T) {
	engine := NewEngine()
	actions := []model.RuleAction{
		{Type: model.ActionPrepend, Field: "title", Value: "[New] "},
		{Type: model.ActionAppend, Field: "tags", Value: "sale"},
		{Type: model.ActionRemove, Field: "tags", Value: "dress"},
		{Type: model.ActionCalculate, Field: "price", Formula: "(price - 10) / 3"},
	}

	first, _ := engine.Apply(sampleRecord(), actions)
	second, _ := engine.Apply(sampleRecord(), actions)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
	if first.Title != "[New] Cotton Summer Dress" {
		t.Errorf("Unexpected title '%s'", first.Title)
	}
	if !reflect.DeepEqual(first.Tags, []string{"summer", "sale"}) {
		t.Errorf("Unexpected tags %v", first.Tags)
	}
	if first.Price != 30 {
		t.Errorf("Expected price 30, got %v", first.Price)
	}
}

func TestApply_ListAndNumericEdits(t *testing.T) {
	engine := NewEngine()
	record := sampleRecord()

	result, warnings := engine.Apply(record, []model.RuleAction{
		{Type: model.ActionPrepend, Field: "tags", Value: "new"},
		{Type: model.ActionReplace, Field: "stock", Value: "7.6"},
		{Type: model.ActionReplace, Field: "images", Value: "a.jpg, b.jpg"},
		{Type: model.ActionAppend, Field: "price", Value: "5"},
	})

	if !reflect.DeepEqual(result.Tags, []string{"new", "summer", "dress"}) {
		t.Errorf("Unexpected tags %v", result.Tags)
	}
	if result.Stock != 8 {
		t.Errorf("Expected stock 8, got %d", result.Stock)
	}
	if !reflect.DeepEqual(result.Images, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("Unexpected images %v", result.Images)
	}
	if result.Price != 100 {
		t.Errorf("Expected append on price to be skipped, got %v", result.Price)
	}
	if len(warnings) != 1 {
		t.Errorf("Expected 1 warning for the skipped append, got %v", warnings)
	}
	if !reflect.DeepEqual(record.Tags, []string{"summer", "dress"}) {
		t.Errorf("Expected input tags unchanged, got %v", record.Tags)
	}
}

func TestApplyRules(t *testing.T) {
	engine := NewEngine()
	record := sampleRecord()

	rules := []model.BatchEditRule{
		{
			ID:         "markup",
			Name:       "Markup cheap apparel",
			Enabled:    true,
			Conditions: []model.RuleCondition{{Field: "price", Operator: model.OperatorRange, Max: float(200)}},
			Actions:    []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price * 1.5"}},
		},
		{
			ID:         "second-pass",
			Name:       "Sees first rule's output",
			Enabled:    true,
			Conditions: []model.RuleCondition{{Field: "price", Operator: model.OperatorEquals, Value: "150"}},
			Actions:    []model.RuleAction{{Type: model.ActionAppend, Field: "description", Value: " (imported)"}},
		},
		{
			ID:      "disabled",
			Name:    "Never runs",
			Enabled: false,
			Actions: []model.RuleAction{{Type: model.ActionRemove, Field: "title"}},
		},
		{
			ID:      "broken",
			Name:    "Unknown operator",
			Enabled: true,
			Conditions: []model.RuleCondition{
				{Field: "title", Operator: "soundsLike", Value: "dress"},
			},
			Actions: []model.RuleAction{{Type: model.ActionRemove, Field: "title"}},
		},
	}

	outcome := engine.ApplyRules(record, rules)

	if outcome.Matched != 2 {
		t.Errorf("Expected 2 matched rules, got %d", outcome.Matched)
	}
	if outcome.Record.Price != 150 {
		t.Errorf("Expected price 150, got %v", outcome.Record.Price)
	}
	if outcome.Record.Description != "Light cotton dress (imported)" {
		t.Errorf("Unexpected description '%s'", outcome.Record.Description)
	}
	if outcome.Record.Title != record.Title {
		t.Errorf("Expected title untouched, got '%s'", outcome.Record.Title)
	}
	if len(outcome.Warnings) != 1 {
		t.Errorf("Expected 1 warning for malformed rule, got %v", outcome.Warnings)
	}

	if len(outcome.Changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(outcome.Changes))
	}
	price := outcome.Changes[0]
	if price.Field != "price" || price.Original != "100" || price.Result != "150" || price.Type != "rule:markup" {
		t.Errorf("Unexpected price change %+v", price)
	}
	if len(outcome.Record.FilterResults) != 2 {
		t.Errorf("Expected changes recorded on the record, got %d", len(outcome.Record.FilterResults))
	}
	if len(record.FilterResults) != 0 || record.Price != 100 {
		t.Error("Expected input record unchanged")
	}
}

func TestValidateRule(t *testing.T) {
	valid := model.BatchEditRule{
		Name:       "ok",
		Conditions: []model.RuleCondition{{Field: "title", Operator: model.OperatorContains, Value: "x"}},
		Actions:    []model.RuleAction{{Type: model.ActionCalculate, Field: "price", Formula: "price + 1"}},
	}
	if err := ValidateRule(valid); err != nil {
		t.Errorf("Expected valid rule, got %v", err)
	}

	tests := []struct {
		name string
		rule model.BatchEditRule
	}{
		{"missing name", model.BatchEditRule{Actions: valid.Actions}},
		{"no actions", model.BatchEditRule{Name: "x"}},
		{"unknown field", model.BatchEditRule{Name: "x", Actions: []model.RuleAction{{Type: model.ActionAppend, Field: "colour", Value: "red"}}}},
		{"calculate text", model.BatchEditRule{Name: "x", Actions: []model.RuleAction{{Type: model.ActionCalculate, Field: "title", Formula: "1"}}}},
		{"range without bounds", model.BatchEditRule{Name: "x", Conditions: []model.RuleCondition{{Field: "price", Operator: model.OperatorRange}}, Actions: valid.Actions}},
		{"unknown action", model.BatchEditRule{Name: "x", Actions: []model.RuleAction{{Type: "explode", Field: "title"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRule(tt.rule); !errors.Is(err, model.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}
