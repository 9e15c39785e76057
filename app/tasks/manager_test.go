package tasks

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/model"
)

func newTestManager(t *testing.T, urls ...string) (*Manager, *database.MemoryStore) {
	t.Helper()

	store := database.NewMemoryStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	task := model.CollectionTask{
		ID:            "task-1",
		SourceID:      "shop",
		Method:        model.TaskMethodBatch,
		URLs:          urls,
		Status:        model.TaskStatusPending,
		TotalProducts: len(urls),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	m := NewManager(store)
	m.now = func() time.Time { return now }
	return m, store
}

func TestManagerCompletesWithPartialFailure(t *testing.T) {
	m, _ := newTestManager(t, "u1", "u2", "u3")

	if _, err := m.Start("task-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := m.RecordSuccess("task-1", "u1", nil); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if _, err := m.RecordFailure("task-1", "u2", errors.New("HTTP 404")); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	outcome, err := m.RecordSuccess("task-1", "u3", nil)
	if err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if outcome.Status != model.TaskStatusCompleted || outcome.Progress != 100 {
		t.Errorf("Expected completed at 100%%, got %s at %d", outcome.Status, outcome.Progress)
	}

	task, err := m.Snapshot("task-1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("Expected status completed, got %s", task.Status)
	}
	if task.Progress != 100 || task.CollectedProducts != 2 || task.FailedProducts != 1 {
		t.Errorf("Unexpected counters: progress=%d collected=%d failed=%d", task.Progress, task.CollectedProducts, task.FailedProducts)
	}
	if task.StartedAt == nil || task.CompletedAt == nil {
		t.Error("Expected start and completion timestamps")
	}

	var failedEntry *model.ActivityEntry
	for i := range task.Activity {
		if task.Activity[i].Outcome == model.ActivityFailed {
			failedEntry = &task.Activity[i]
		}
	}
	if failedEntry == nil || failedEntry.URL != "u2" || failedEntry.Message != "HTTP 404" {
		t.Errorf("Expected failed activity entry for u2, got %+v", task.Activity)
	}
}

func TestManagerFailsWhenEveryItemFails(t *testing.T) {
	m, _ := newTestManager(t, "u1", "u2")

	m.Start("task-1")
	m.RecordFailure("task-1", "u1", errors.New("boom"))
	m.RecordFailure("task-1", "u2", errors.New("boom"))

	task, _ := m.Snapshot("task-1")
	if task.Status != model.TaskStatusFailed {
		t.Errorf("Expected status failed, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", task.Progress)
	}
}

func TestManagerCompletesEmptyTask(t *testing.T) {
	m, _ := newTestManager(t)

	task, err := m.Start("task-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if task.Status != model.TaskStatusCompleted || task.Progress != 0 {
		t.Errorf("Expected completed with progress 0, got %s %d", task.Status, task.Progress)
	}
}

func TestManagerProgressRounds(t *testing.T) {
	m, _ := newTestManager(t, "u1", "u2", "u3")
	m.Start("task-1")

	outcome, _ := m.RecordSuccess("task-1", "u1", nil)
	if outcome.Progress != 33 {
		t.Errorf("Expected progress 33, got %d", outcome.Progress)
	}
	outcome, _ = m.RecordSuccess("task-1", "u2", nil)
	if outcome.Progress != 67 {
		t.Errorf("Expected progress 67, got %d", outcome.Progress)
	}
}

func TestManagerCancelDiscardsLaterOutcomes(t *testing.T) {
	m, _ := newTestManager(t, "u1", "u2", "u3")
	m.Start("task-1")
	m.RecordSuccess("task-1", "u1", nil)

	task, err := m.Cancel("task-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if task.Status != model.TaskStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", task.Status)
	}

	before, _ := m.Snapshot("task-1")

	persisted := false
	outcome, err := m.RecordSuccess("task-1", "u2", func() error {
		persisted = true
		return nil
	})
	if err != nil {
		t.Fatalf("RecordSuccess after cancel returned error: %v", err)
	}
	if outcome.Outcome != model.ActivityDiscarded {
		t.Errorf("Expected discarded outcome, got %s", outcome.Outcome)
	}
	if outcome.Status != model.TaskStatusCancelled || outcome.Error == "" {
		t.Errorf("Expected discarded outcome to carry status and reason, got %+v", outcome)
	}
	if persisted {
		t.Error("Expected record not to be stored after cancel")
	}

	late, err := m.RecordFailure("task-1", "u3", errors.New("late"))
	if err != nil {
		t.Fatalf("RecordFailure after cancel returned error: %v", err)
	}
	if late.Outcome != model.ActivityDiscarded || !strings.Contains(late.Error, "late") {
		t.Errorf("Expected discarded outcome mentioning the cause, got %+v", late)
	}

	after, _ := m.Snapshot("task-1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("Stored task changed after cancel:\nbefore: %+v\nafter:  %+v", before, after)
	}
	if after.CollectedProducts != 1 || after.FailedProducts != 0 {
		t.Errorf("Counters changed after cancel: collected=%d failed=%d", after.CollectedProducts, after.FailedProducts)
	}
	if after.Status != model.TaskStatusCancelled {
		t.Errorf("Expected status to stay cancelled, got %s", after.Status)
	}
}

func TestManagerCancelTerminalConflicts(t *testing.T) {
	m, _ := newTestManager(t, "u1")
	m.Start("task-1")
	m.RecordSuccess("task-1", "u1", nil)

	before, _ := m.Snapshot("task-1")

	if _, err := m.Cancel("task-1"); !errors.Is(err, model.ErrStateConflict) {
		t.Fatalf("Expected ErrStateConflict, got %v", err)
	}

	after, _ := m.Snapshot("task-1")
	if after.Status != model.TaskStatusCompleted || len(after.Activity) != len(before.Activity) {
		t.Errorf("Task changed by rejected cancel: %+v", after)
	}
}

func TestManagerPersistFailureCountsAsFailed(t *testing.T) {
	m, _ := newTestManager(t, "u1")
	m.Start("task-1")

	outcome, err := m.RecordSuccess("task-1", "u1", func() error {
		return errors.New("disk full")
	})
	if err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if outcome.Outcome != model.ActivityFailed {
		t.Errorf("Expected failed outcome, got %s", outcome.Outcome)
	}
	if outcome.Status != model.TaskStatusFailed {
		t.Errorf("Expected task failed, got %s", outcome.Status)
	}
}

func TestManagerRejectsOutcomesBeforeStart(t *testing.T) {
	m, _ := newTestManager(t, "u1")

	if _, err := m.RecordSuccess("task-1", "u1", nil); !errors.Is(err, model.ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict, got %v", err)
	}
	if _, err := m.Start("missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManagerSetTargets(t *testing.T) {
	m, _ := newTestManager(t, "https://shop.example.com/")

	task, err := m.SetTargets("task-1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("SetTargets failed: %v", err)
	}
	if task.TotalProducts != 2 || len(task.URLs) != 2 {
		t.Errorf("Unexpected targets: %+v", task)
	}

	m.Start("task-1")
	if _, err := m.SetTargets("task-1", []string{"c"}); !errors.Is(err, model.ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict once started, got %v", err)
	}
}

func TestManagerConcurrentOutcomes(t *testing.T) {
	urls := make([]string, 50)
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
	}
	m, _ := newTestManager(t, urls...)
	m.Start("task-1")

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			if i%5 == 0 {
				m.RecordFailure("task-1", url, errors.New("boom"))
				return
			}
			m.RecordSuccess("task-1", url, nil)
		}(i, url)
	}
	wg.Wait()

	task, _ := m.Snapshot("task-1")
	if task.CollectedProducts != 40 || task.FailedProducts != 10 {
		t.Errorf("Lost updates: collected=%d failed=%d", task.CollectedProducts, task.FailedProducts)
	}
	if task.Status != model.TaskStatusCompleted || task.Progress != 100 {
		t.Errorf("Expected completed at 100, got %s at %d", task.Status, task.Progress)
	}
}
