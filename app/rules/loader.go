package rules

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/listing-comb/app/model"
)

type seedFile struct {
	Rules []model.BatchEditRule `yaml:"rules"`
}

// LoadSeeds reads a YAML rules file. Every rule needs an id so that reloading the
// file updates rules instead of duplicating them. A missing file yields no rules.
func LoadSeeds(path string) ([]model.BatchEditRule, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("Rules file not found, skipping", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse rules file %s: %v", model.ErrValidation, path, err)
	}

	seen := make(map[string]bool, len(file.Rules))
	for i, rule := range file.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("%w: rule #%d in %s has no id", model.ErrValidation, i+1, path)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %s in %s", model.ErrValidation, rule.ID, path)
		}
		seen[rule.ID] = true

		if err := ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %s in %s: %w", rule.ID, path, err)
		}
	}

	return file.Rules, nil
}
