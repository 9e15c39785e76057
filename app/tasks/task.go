package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/listing-comb/app/model"
)

type TaskType string

const (
	TaskTypeCollect   TaskType = "collect"
	TaskTypeBatchEdit TaskType = "batch_edit"
)

const (
	DefaultMaxRetries = 3

	// Fetches already retry per item inside the pipeline; a collect job is only
	// rerun when it failed before any item was dispatched.
	collectMaxRetries = 1
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetSubject() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Retryable(err error) bool
	LogAttrs() []any
	Start()
	GetDuration() time.Duration
}

// Task is the bookkeeping shared by every background job. Subject names what the
// job works on (a collection task id, a batch of records) for logs.
type Task struct {
	ID         string
	Type       TaskType
	Subject    string
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetSubject() string {
	return t.Subject
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// Retryable reports whether err may go away on a later run. Bad input, a task or
// record in the wrong state, a missing entity and a stopped scheduler will not.
func (t *Task) Retryable(err error) bool {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrStateConflict),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// LogAttrs identifies the job in slog calls.
func (t *Task) LogAttrs() []any {
	return []any{"job_id", t.ID, "type", string(t.Type), "subject", t.Subject, "retry_count", t.RetryCount}
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, subject string) Task {
	maxRetries := DefaultMaxRetries
	if taskType == TaskTypeCollect {
		maxRetries = collectMaxRetries
	}

	return Task{
		ID:         string(taskType) + "-" + uuid.NewString(),
		Type:       taskType,
		Subject:    subject,
		RetryCount: 0,
		MaxRetries: maxRetries,
	}
}
