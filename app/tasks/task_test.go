package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lysyi3m/listing-comb/app/model"
)

func TestNewTaskRetryBudget(t *testing.T) {
	collect := NewTask(TaskTypeCollect, "task-1")
	if collect.GetMaxRetries() != collectMaxRetries {
		t.Errorf("Expected collect budget %d, got %d", collectMaxRetries, collect.GetMaxRetries())
	}

	edit := NewTask(TaskTypeBatchEdit, "3 records")
	if edit.GetMaxRetries() != DefaultMaxRetries {
		t.Errorf("Expected batch edit budget %d, got %d", DefaultMaxRetries, edit.GetMaxRetries())
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !edit.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		edit.IncrementRetryCount()
	}
	if edit.CanRetry() {
		t.Error("Expected no retry once the budget is spent")
	}
}

func TestNewTaskIDs(t *testing.T) {
	a := NewTask(TaskTypeCollect, "task-1")
	b := NewTask(TaskTypeCollect, "task-1")

	if a.GetID() == b.GetID() {
		t.Errorf("Expected distinct job ids, got %s twice", a.GetID())
	}
	if !strings.HasPrefix(a.GetID(), "collect-") {
		t.Errorf("Expected id prefixed with the job type, got %s", a.GetID())
	}
}

func TestTaskRetryable(t *testing.T) {
	task := NewTask(TaskTypeBatchEdit, "1 records")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"fetch failure", fmt.Errorf("%w: timeout", model.ErrFetch), true},
		{"storage failure", errors.New("database is locked"), true},
		{"validation", fmt.Errorf("%w: no records selected", model.ErrValidation), false},
		{"state conflict", fmt.Errorf("%w: task is completed", model.ErrStateConflict), false},
		{"not found", fmt.Errorf("%w: rule r1", model.ErrNotFound), false},
		{"scheduler stopped", fmt.Errorf("failed to run task: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := task.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTaskLogAttrs(t *testing.T) {
	task := NewTask(TaskTypeCollect, "task-1")
	task.IncrementRetryCount()

	attrs := task.LogAttrs()
	if len(attrs)%2 != 0 {
		t.Fatalf("Expected key/value pairs, got %v", attrs)
	}

	got := map[string]any{}
	for i := 0; i < len(attrs); i += 2 {
		got[attrs[i].(string)] = attrs[i+1]
	}
	if got["job_id"] != task.ID || got["type"] != "collect" || got["subject"] != "task-1" || got["retry_count"] != 1 {
		t.Errorf("Unexpected log attrs: %v", got)
	}
}
