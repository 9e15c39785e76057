package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lysyi3m/listing-comb/app/model"
)

// SQLRuleRepository handles database operations for batch edit rules
type SQLRuleRepository struct {
	db *DB
}

func NewRuleRepository(db *DB) *SQLRuleRepository {
	return &SQLRuleRepository{db: db}
}

const ruleColumns = `id, name, enabled, conditions, actions, created_at, updated_at`

func (r *SQLRuleRepository) ListRules() ([]model.BatchEditRule, error) {
	rows, err := r.db.Query(`SELECT ` + ruleColumns + ` FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.BatchEditRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *SQLRuleRepository) GetRule(id string) (*model.BatchEditRule, error) {
	rule, err := scanRule(r.db.QueryRow(`SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// UpsertRule inserts a new rule at the end of the list or updates an existing one in place.
func (r *SQLRuleRepository) UpsertRule(rule model.BatchEditRule) error {
	conditions, err := encodeJSON(rule.Conditions)
	if err != nil {
		return err
	}
	actions, err := encodeJSON(rule.Actions)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO rules (id, position, name, enabled, conditions, actions, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM rules), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			conditions = excluded.conditions,
			actions = excluded.actions,
			updated_at = excluded.updated_at
	`, rule.ID, rule.Name, rule.Enabled, conditions, actions,
		formatTime(rule.CreatedAt), formatTime(rule.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

func (r *SQLRuleRepository) DeleteRule(id string) error {
	result, err := r.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectOneRow(result, "rule", id)
}

func scanRule(row rowScanner) (*model.BatchEditRule, error) {
	var (
		rule                 model.BatchEditRule
		conditions, actions  string
		createdAt, updatedAt string
	)

	if err := row.Scan(&rule.ID, &rule.Name, &rule.Enabled, &conditions, &actions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if err = decodeJSON(conditions, &rule.Conditions); err != nil {
		return nil, err
	}
	if err = decodeJSON(actions, &rule.Actions); err != nil {
		return nil, err
	}
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}
