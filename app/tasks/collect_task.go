package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/listing-comb/app/model"
)

// CollectTask runs one collection task in the background and drains its outcome
// stream.
type CollectTask struct {
	Task
	TaskID string
	runner TaskRunner
}

func NewCollectTask(taskID string, runner TaskRunner) *CollectTask {
	return &CollectTask{
		Task:   NewTask(TaskTypeCollect, taskID),
		TaskID: taskID,
		runner: runner,
	}
}

func (t *CollectTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outcomes, err := t.runner.RunTask(ctx, t.TaskID)
	if err != nil {
		return fmt.Errorf("failed to run task %s: %w", t.TaskID, err)
	}

	var collected, failed, discarded int
	for outcome := range outcomes {
		switch outcome.Outcome {
		case model.ActivityCollected:
			collected++
		case model.ActivityFailed:
			failed++
		case model.ActivityDiscarded:
			discarded++
		}
	}

	slog.Debug("Collection drained", "task_id", t.TaskID, "collected", collected, "failed", failed, "discarded", discarded)

	return nil
}
