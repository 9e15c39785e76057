package tasks

import (
	"context"

	"github.com/lysyi3m/listing-comb/app/model"
)

// TaskSchedulerInterface is what the HTTP layer needs to hand work to the
// background worker pool.
//
//	scheduler := NewScheduler(workerCount, observer)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewCollectTask(taskID, runner))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// TaskRunner runs one collection task to its end.
type TaskRunner interface {
	RunTask(ctx context.Context, taskID string) (<-chan model.ItemOutcome, error)
}

type BatchApplier interface {
	BatchApply(recordIDs, ruleIDs []string) (*model.BatchResult, error)
}

// Observer is told how every executed job ended.
type Observer interface {
	ObserveJob(taskType string, duration float64, err error)
}
