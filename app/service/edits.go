package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lysyi3m/listing-comb/app/metrics"
	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/publish"
	"github.com/lysyi3m/listing-comb/app/rules"
)

func (s *Service) ListRules() ([]model.BatchEditRule, error) {
	return s.store.ListRules()
}

// UpsertRule validates and stores a rule. A rule without id gets a new one and
// goes to the end of the list; an existing rule keeps its position and createdAt.
func (s *Service) UpsertRule(rule model.BatchEditRule) (*model.BatchEditRule, error) {
	if err := rules.ValidateRule(rule); err != nil {
		return nil, err
	}

	now := s.now()
	rule.CreatedAt = now
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	} else if existing, err := s.store.GetRule(rule.ID); err == nil {
		rule.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	rule.UpdatedAt = now

	if err := s.store.UpsertRule(rule); err != nil {
		return nil, err
	}

	slog.Info("Rule saved", "rule_id", rule.ID, "name", rule.Name, "enabled", rule.Enabled)
	return &rule, nil
}

func (s *Service) DeleteRule(id string) error {
	if err := s.store.DeleteRule(id); err != nil {
		return err
	}
	slog.Info("Rule deleted", "rule_id", id)
	return nil
}

// SeedRules stores rules that are not yet known. Rules already present are left
// alone so operator edits survive restarts.
func (s *Service) SeedRules(seeds []model.BatchEditRule) (int, error) {
	added := 0
	for _, seed := range seeds {
		_, err := s.store.GetRule(seed.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return added, err
		}
		if _, err := s.UpsertRule(seed); err != nil {
			return added, fmt.Errorf("failed to seed rule %s: %w", seed.ID, err)
		}
		added++
	}
	return added, nil
}

// resolveRules returns the requested rules in rule list order, which is also
// the order they are applied in. No ids means every rule; the engine skips
// disabled ones.
func (s *Service) resolveRules(ids []string) ([]model.BatchEditRule, error) {
	all, err := s.store.ListRules()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var selected []model.BatchEditRule
	for _, rule := range all {
		if wanted[rule.ID] {
			selected = append(selected, rule)
			delete(wanted, rule.ID)
		}
	}
	for _, id := range ids {
		if wanted[id] {
			return nil, fmt.Errorf("%w: rule %s", model.ErrNotFound, id)
		}
	}
	return selected, nil
}

// BatchApply runs the rules over every record independently. A record that cannot
// be loaded or saved is reported in its result and does not stop the batch.
func (s *Service) BatchApply(recordIDs, ruleIDs []string) (*model.BatchResult, error) {
	if len(recordIDs) == 0 {
		return nil, fmt.Errorf("%w: no records selected", model.ErrValidation)
	}

	ruleSet, err := s.resolveRules(ruleIDs)
	if err != nil {
		return nil, err
	}

	result := &model.BatchResult{Results: make([]model.RecordEdit, 0, len(recordIDs))}
	warnings := 0

	for _, id := range recordIDs {
		edit := s.applyToRecord(id, ruleSet)
		warnings += len(edit.Warnings)
		if len(edit.Changes) > 0 {
			result.EditedCount++
		}
		result.Results = append(result.Results, edit)
	}

	metrics.RecordRuleWarnings(warnings)
	metrics.RecordEdited(result.EditedCount)

	slog.Info("Batch edit finished", "records", len(recordIDs), "rules", len(ruleSet), "edited", result.EditedCount, "warnings", warnings)
	return result, nil
}

func (s *Service) applyToRecord(id string, ruleSet []model.BatchEditRule) model.RecordEdit {
	unlock := s.lockRecord(id)
	defer unlock()

	edit := model.RecordEdit{RecordID: id}

	record, err := s.store.GetRecord(id)
	if err != nil {
		edit.Error = err.Error()
		return edit
	}
	if record.Status == model.RecordStatusPublished {
		edit.Error = fmt.Errorf("%w: record %s is published", model.ErrStateConflict, id).Error()
		return edit
	}

	outcome := s.engine.ApplyRules(record, ruleSet)
	edit.Matched = outcome.Matched
	edit.Changes = outcome.Changes
	edit.Warnings = outcome.Warnings

	if len(outcome.Changes) > 0 {
		outcome.Record.UpdatedAt = s.now()
		if err := s.store.UpdateRecord(*outcome.Record); err != nil {
			edit.Error = err.Error()
			edit.Changes = nil
		}
	}
	return edit
}

// ReviewRecord moves a record forward through review: pending_review, approved
// or rejected.
func (s *Service) ReviewRecord(id string, status model.RecordStatus) (*model.CollectedRecord, error) {
	switch status {
	case model.RecordStatusPendingReview, model.RecordStatusApproved, model.RecordStatusRejected:
	default:
		return nil, fmt.Errorf("%w: %q is not a review status", model.ErrValidation, status)
	}

	unlock := s.lockRecord(id)
	defer unlock()

	record, err := s.store.GetRecord(id)
	if err != nil {
		return nil, err
	}
	if err := record.AdvanceStatus(status); err != nil {
		return nil, err
	}
	record.UpdatedAt = s.now()

	if err := s.store.UpdateRecord(*record); err != nil {
		return nil, err
	}

	slog.Info("Record reviewed", "record_id", id, "status", string(status))
	return record, nil
}

// PublishRecord publishes one approved record. On any error the record keeps its
// status.
func (s *Service) PublishRecord(id string, settings model.PublishSettings) (*model.CatalogRecord, error) {
	if err := publish.ValidateSettings(settings); err != nil {
		return nil, err
	}
	ruleSet, err := s.publishRules(settings)
	if err != nil {
		return nil, err
	}
	return s.publishOne(id, settings, ruleSet)
}

// publishRules resolves the rules to re-apply before publishing; none unless
// the settings name some.
func (s *Service) publishRules(settings model.PublishSettings) ([]model.BatchEditRule, error) {
	if len(settings.RuleIDs) == 0 {
		return nil, nil
	}
	return s.resolveRules(settings.RuleIDs)
}

func (s *Service) publishOne(id string, settings model.PublishSettings, ruleSet []model.BatchEditRule) (*model.CatalogRecord, error) {
	unlock := s.lockRecord(id)
	defer unlock()

	record, err := s.store.GetRecord(id)
	if err != nil {
		return nil, err
	}

	catalog, warnings, err := s.publisher.Publish(record, settings, ruleSet)
	if err != nil {
		return nil, err
	}
	metrics.RecordRuleWarnings(len(warnings))

	if err := s.store.CreateCatalogRecord(*catalog); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRecord(*record); err != nil {
		return nil, fmt.Errorf("catalog record %s created but record %s not updated: %w", catalog.ID, id, err)
	}

	metrics.RecordPublished(1)
	slog.Info("Record published", "record_id", id, "catalog_id", catalog.ID, "price", catalog.Price)
	return catalog, nil
}

// Publish publishes every listed record. Records that fail are reported in
// Failures and leave their status unchanged.
func (s *Service) Publish(recordIDs []string, settings model.PublishSettings) (*model.PublishResult, error) {
	if len(recordIDs) == 0 {
		return nil, fmt.Errorf("%w: no records selected", model.ErrValidation)
	}
	if err := publish.ValidateSettings(settings); err != nil {
		return nil, err
	}

	ruleSet, err := s.publishRules(settings)
	if err != nil {
		return nil, err
	}

	result := &model.PublishResult{Records: []model.CatalogRecord{}}
	for _, id := range recordIDs {
		catalog, err := s.publishOne(id, settings, ruleSet)
		if err != nil {
			result.Failures = append(result.Failures, model.PublishFailure{RecordID: id, Error: err.Error()})
			continue
		}
		result.Records = append(result.Records, *catalog)
		result.PublishedCount++
	}
	return result, nil
}

func (s *Service) ListCatalog(limit int) ([]model.CatalogRecord, error) {
	return s.store.ListCatalogRecords(limit)
}
