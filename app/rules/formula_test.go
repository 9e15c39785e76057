package rules

import (
	"errors"
	"testing"

	"github.com/lysyi3m/listing-comb/app/model"
)

func TestEvaluateFormula(t *testing.T) {
	tests := []struct {
		formula string
		value   float64
		want    float64
	}{
		{"price * 1.2", 100, 120},
		{"price + 5", 10, 15},
		{"(price - 10) / 2", 30, 10},
		{"-price + 1", 3, -2},
		{"2 * (3 + price) * 2", 1, 16},
		{"price", 42.5, 42.5},
		{"price - price * 0.1", -50, -45},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := EvaluateFormula(tt.formula, "price", tt.value)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if round2(got) != tt.want {
				t.Errorf("EvaluateFormula(%q) = %v, want %v", tt.formula, got, tt.want)
			}
		})
	}
}

func TestEvaluateFormula_Rejects(t *testing.T) {
	formulas := []string{
		"price; drop",
		"price * stock",
		"os.Exit(1)",
		"price / 0",
		"price / (price - price)",
		"price *",
		"(price + 1",
		"price + 1)",
		"",
		"1..2",
		"price ** 2",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			_, err := EvaluateFormula(formula, "price", 10)
			if !errors.Is(err, model.ErrRuleEvaluation) {
				t.Errorf("Expected rule evaluation error for %q, got %v", formula, err)
			}
		})
	}
}

func TestEvaluateFormula_VariableNotMatchedInsideLongerName(t *testing.T) {
	if _, err := EvaluateFormula("originalPrice * 2", "price", 10); err == nil {
		t.Error("Expected originalPrice to be rejected when evaluating price")
	}

	got, err := EvaluateFormula("originalPrice * 2", "originalPrice", 10)
	if err != nil || got != 20 {
		t.Errorf("Expected 20, got %v (%v)", got, err)
	}
}
