package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchEditTask applies a set of rules to a set of records off the request path.
type BatchEditTask struct {
	Task
	RecordIDs []string
	RuleIDs   []string
	applier   BatchApplier
}

func NewBatchEditTask(recordIDs, ruleIDs []string, applier BatchApplier) *BatchEditTask {
	return &BatchEditTask{
		Task:      NewTask(TaskTypeBatchEdit, fmt.Sprintf("%d records", len(recordIDs))),
		RecordIDs: recordIDs,
		RuleIDs:   ruleIDs,
		applier:   applier,
	}
}

func (t *BatchEditTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.applier.BatchApply(t.RecordIDs, t.RuleIDs)
	if err != nil {
		return fmt.Errorf("failed to apply rules: %w", err)
	}

	slog.Info("Batch edit applied", "records", len(t.RecordIDs), "rules", len(t.RuleIDs), "edited", result.EditedCount)
	return nil
}
