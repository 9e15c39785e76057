package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/listing-comb/app/model"
)

const ChangeTypeRule = "rule"

// Outcome is the result of applying a rule list to one record.
type Outcome struct {
	Record   *model.CollectedRecord
	Changes  []model.FilterResult
	Warnings []string
	Matched  int
}

// Engine evaluates batch-edit rules against collected records. It never mutates the
// record it is given.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// ValidateRule reports whether rule is well formed: known fields, operators and
// action types, plus the arguments each operator or action needs.
func ValidateRule(rule model.BatchEditRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: rule name is required", model.ErrValidation)
	}
	if len(rule.Actions) == 0 {
		return fmt.Errorf("%w: rule '%s' has no actions", model.ErrValidation, rule.Name)
	}

	for _, cond := range rule.Conditions {
		if _, err := LookupField(cond.Field); err != nil {
			return err
		}
		switch cond.Operator {
		case model.OperatorEquals, model.OperatorContains, model.OperatorStartsWith, model.OperatorEndsWith:
		case model.OperatorRegex:
			if _, err := regexp.Compile(cond.Value); err != nil {
				return fmt.Errorf("%w: rule '%s' has invalid regex '%s'", model.ErrValidation, rule.Name, cond.Value)
			}
		case model.OperatorRange:
			if cond.Min == nil && cond.Max == nil {
				return fmt.Errorf("%w: rule '%s' range condition needs min or max", model.ErrValidation, rule.Name)
			}
		default:
			return fmt.Errorf("%w: rule '%s' has unknown operator '%s'", model.ErrValidation, rule.Name, cond.Operator)
		}
	}

	for _, action := range rule.Actions {
		field, err := LookupField(action.Field)
		if err != nil {
			return err
		}
		switch action.Type {
		case model.ActionReplace, model.ActionAppend, model.ActionPrepend, model.ActionRemove:
			if action.Type != model.ActionReplace && field.Kind == FieldNumber {
				return fmt.Errorf("%w: rule '%s' cannot %s numeric field '%s'", model.ErrValidation, rule.Name, action.Type, field.Name)
			}
		case model.ActionCalculate:
			if field.Kind != FieldNumber {
				return fmt.Errorf("%w: rule '%s' can only calculate numeric fields", model.ErrValidation, rule.Name)
			}
			if strings.TrimSpace(action.Formula) == "" {
				return fmt.Errorf("%w: rule '%s' calculate action needs a formula", model.ErrValidation, rule.Name)
			}
		default:
			return fmt.Errorf("%w: rule '%s' has unknown action type '%s'", model.ErrValidation, rule.Name, action.Type)
		}
	}

	return nil
}

// Evaluate reports whether every condition holds for record. An empty condition
// list matches every record.
func (e *Engine) Evaluate(record *model.CollectedRecord, conditions []model.RuleCondition) bool {
	matched, _ := e.evaluate(record, conditions)
	return matched
}

func (e *Engine) evaluate(record *model.CollectedRecord, conditions []model.RuleCondition) (bool, []string) {
	var warnings []string
	for _, cond := range conditions {
		ok, warning := evaluateCondition(record, cond)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if !ok {
			return false, warnings
		}
	}
	return true, warnings
}

func evaluateCondition(record *model.CollectedRecord, cond model.RuleCondition) (bool, string) {
	field, err := LookupField(cond.Field)
	if err != nil {
		return false, err.Error()
	}

	switch cond.Operator {
	case model.OperatorEquals:
		if current, ok := field.Number(record); ok {
			if want, ok := parseNumber(cond.Value); ok {
				return current == want, ""
			}
		}
		return field.String(record) == cond.Value, ""

	case model.OperatorContains, model.OperatorStartsWith, model.OperatorEndsWith:
		current, want := field.String(record), cond.Value
		if !cond.CaseSensitive {
			current, want = strings.ToLower(current), strings.ToLower(want)
		}
		switch cond.Operator {
		case model.OperatorContains:
			return strings.Contains(current, want), ""
		case model.OperatorStartsWith:
			return strings.HasPrefix(current, want), ""
		default:
			return strings.HasSuffix(current, want), ""
		}

	case model.OperatorRegex:
		expr := cond.Value
		if !cond.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return false, fmt.Sprintf("invalid regex '%s' on field '%s'", cond.Value, cond.Field)
		}
		return re.MatchString(field.String(record)), ""

	case model.OperatorRange:
		current, ok := field.Number(record)
		if !ok {
			return false, ""
		}
		if cond.Min != nil && current < *cond.Min {
			return false, ""
		}
		if cond.Max != nil && current > *cond.Max {
			return false, ""
		}
		return true, ""

	default:
		return false, fmt.Sprintf("unknown operator '%s' on field '%s'", cond.Operator, cond.Field)
	}
}

// Apply runs actions in order against a copy of record and returns the copy.
// Actions that cannot be applied are skipped with a warning.
func (e *Engine) Apply(record *model.CollectedRecord, actions []model.RuleAction) (*model.CollectedRecord, []string) {
	clone := record.Clone()
	result := &clone

	var warnings []string
	for i, action := range actions {
		if err := applyAction(result, action); err != nil {
			warnings = append(warnings, fmt.Sprintf("action %d (%s %s): %v", i+1, action.Type, action.Field, err))
			slog.Warn("Skipping action", "record_id", record.ID, "type", string(action.Type), "field", action.Field, "error", err)
		}
	}
	return result, warnings
}

// applyAction mutates record in place. It returns an error, and leaves the record
// untouched, when the action does not fit the field.
func applyAction(record *model.CollectedRecord, action model.RuleAction) error {
	field, err := LookupField(action.Field)
	if err != nil {
		return err
	}

	switch action.Type {
	case model.ActionReplace:
		return applyReplace(record, field, action)

	case model.ActionAppend, model.ActionPrepend:
		switch field.Kind {
		case FieldList:
			list := slices.Clone(field.getList(record))
			if action.Type == model.ActionAppend {
				list = append(list, action.Value)
			} else {
				list = append([]string{action.Value}, list...)
			}
			field.setList(record, list)
		case FieldText:
			if action.Type == model.ActionAppend {
				field.setText(record, field.getText(record)+action.Value)
			} else {
				field.setText(record, action.Value+field.getText(record))
			}
		default:
			return fmt.Errorf("%w: cannot %s numeric field '%s'", model.ErrRuleEvaluation, action.Type, field.Name)
		}
		return nil

	case model.ActionRemove:
		switch field.Kind {
		case FieldList:
			list := slices.DeleteFunc(slices.Clone(field.getList(record)), func(item string) bool {
				return item == action.Value
			})
			field.setList(record, list)
		case FieldText:
			if action.Value == "" {
				field.setText(record, "")
			} else {
				field.setText(record, strings.ReplaceAll(field.getText(record), action.Value, ""))
			}
		default:
			return fmt.Errorf("%w: cannot remove from numeric field '%s'", model.ErrRuleEvaluation, field.Name)
		}
		return nil

	case model.ActionCalculate:
		if field.Kind != FieldNumber {
			return fmt.Errorf("%w: cannot calculate text field '%s'", model.ErrRuleEvaluation, field.Name)
		}
		value, err := EvaluateFormula(action.Formula, field.Name, field.getNum(record))
		if err != nil {
			return err
		}
		field.setNum(record, round2(value))
		return nil

	default:
		return fmt.Errorf("%w: unknown action type '%s'", model.ErrRuleEvaluation, action.Type)
	}
}

// applyReplace substitutes every literal occurrence of Value in text fields. Numeric
// and list fields are overwritten with Value.
func applyReplace(record *model.CollectedRecord, field Field, action model.RuleAction) error {
	switch field.Kind {
	case FieldText:
		if action.Value == "" {
			return fmt.Errorf("%w: replace on '%s' needs a value to match", model.ErrRuleEvaluation, field.Name)
		}
		field.setText(record, strings.ReplaceAll(field.getText(record), action.Value, action.Replacement))
	case FieldNumber:
		v, ok := parseNumber(action.Value)
		if !ok {
			return fmt.Errorf("%w: '%s' is not a number for field '%s'", model.ErrRuleEvaluation, action.Value, field.Name)
		}
		field.setNum(record, round2(v))
	case FieldList:
		var list []string
		for _, item := range strings.Split(action.Value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		field.setList(record, list)
	}
	return nil
}

// ApplyRules evaluates every enabled rule in list order and applies the actions of
// those that match. Later rules see the output of earlier ones. Malformed rules and
// unusable actions are skipped and reported as warnings.
func (e *Engine) ApplyRules(record *model.CollectedRecord, rules []model.BatchEditRule) Outcome {
	clone := record.Clone()
	outcome := Outcome{Record: &clone}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if err := ValidateRule(rule); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rule %s skipped: %v", rule.ID, err))
			slog.Warn("Skipping malformed rule", "rule_id", rule.ID, "error", err)
			continue
		}

		matched, warnings := e.evaluate(outcome.Record, rule.Conditions)
		for _, w := range warnings {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rule %s: %s", rule.ID, w))
		}
		if !matched {
			continue
		}
		outcome.Matched++

		for _, action := range rule.Actions {
			field, _ := LookupField(action.Field)
			before := field.String(outcome.Record)

			if err := applyAction(outcome.Record, action); err != nil {
				outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rule %s: %v", rule.ID, err))
				continue
			}

			after := field.String(outcome.Record)
			if after == before {
				continue
			}

			resultAction := model.FilterActionReplaced
			if action.Type == model.ActionRemove {
				resultAction = model.FilterActionRemoved
			}
			outcome.Changes = append(outcome.Changes, model.FilterResult{
				Type:      ChangeTypeRule + ":" + rule.ID,
				Field:     field.Name,
				Original:  before,
				Result:    after,
				Action:    resultAction,
				CreatedAt: e.now().UTC(),
			})
		}
	}

	outcome.Record.FilterResults = append(outcome.Record.FilterResults, outcome.Changes...)
	return outcome
}
