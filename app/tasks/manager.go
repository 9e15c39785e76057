package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/model"
)

// Manager owns the mutable state of collection tasks: status, counters, progress
// and the activity log. Every change is a read-modify-write under the task's lock
// and is persisted before the lock is released.
type Manager struct {
	repo  database.TaskRepository
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	now   func() time.Time
}

func NewManager(repo database.TaskRepository) *Manager {
	return &Manager{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// errUnchanged lets an update callback leave the task as stored.
var errUnchanged = errors.New("task unchanged")

// update loads the task, lets fn mutate it and saves it. fn returning an error
// aborts without saving; errUnchanged returns the stored task as is.
func (m *Manager) update(id string, fn func(task *model.CollectionTask) error) (*model.CollectionTask, error) {
	unlock := m.lock(id)
	defer unlock()

	task, err := m.repo.GetTask(id)
	if err != nil {
		return nil, err
	}

	if err := fn(task); err != nil {
		if errors.Is(err, errUnchanged) {
			return task, nil
		}
		return nil, err
	}

	task.UpdatedAt = m.now()
	if err := m.repo.UpdateTask(*task); err != nil {
		return nil, fmt.Errorf("failed to save task %s: %w", id, err)
	}
	return task, nil
}

// SetTargets replaces the URL list of a pending task, used once shop pages have
// been expanded into product URLs.
func (m *Manager) SetTargets(id string, urls []string) (*model.CollectionTask, error) {
	return m.update(id, func(task *model.CollectionTask) error {
		if task.Status != model.TaskStatusPending {
			return fmt.Errorf("%w: task %s is %s", model.ErrStateConflict, id, task.Status)
		}
		task.URLs = append([]string(nil), urls...)
		task.TotalProducts = len(urls)
		return nil
	})
}

// Start moves a pending task to processing. A task with nothing to do completes
// immediately.
func (m *Manager) Start(id string) (*model.CollectionTask, error) {
	task, err := m.update(id, func(task *model.CollectionTask) error {
		if task.Status != model.TaskStatusPending {
			return fmt.Errorf("%w: task %s is %s", model.ErrStateConflict, id, task.Status)
		}

		now := m.now()
		task.StartedAt = &now
		m.transition(task, model.TaskStatusProcessing, "")

		if task.TotalProducts == 0 {
			m.finish(task, model.TaskStatusCompleted, "no items to collect")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Task started", "task_id", id, "source", task.SourceID, "total", task.TotalProducts)
	return task, nil
}

// RecordSuccess counts a collected item. persist runs under the task lock before
// counting so a stored record is never attached to a task that was already
// terminal; if it fails the item counts as failed. Outcomes arriving after the
// task became terminal are discarded.
func (m *Manager) RecordSuccess(id, url string, persist func() error) (model.ItemOutcome, error) {
	return m.record(id, url, nil, persist)
}

// RecordFailure counts a failed item with its cause.
func (m *Manager) RecordFailure(id, url string, cause error) (model.ItemOutcome, error) {
	return m.record(id, url, cause, nil)
}

func (m *Manager) record(id, url string, cause error, persist func() error) (model.ItemOutcome, error) {
	outcome := model.ItemOutcome{TaskID: id, URL: url}

	task, err := m.update(id, func(task *model.CollectionTask) error {
		if task.Status.IsTerminal() {
			outcome.Outcome = model.ActivityDiscarded
			message := "outcome arrived after task was " + string(task.Status)
			if cause != nil {
				message += ": " + cause.Error()
			}
			outcome.Error = message
			return errUnchanged
		}

		if task.Status != model.TaskStatusProcessing {
			return fmt.Errorf("%w: task %s is %s", model.ErrStateConflict, id, task.Status)
		}
		if task.CollectedProducts+task.FailedProducts >= task.TotalProducts {
			return fmt.Errorf("%w: task %s already accounted for all %d items", model.ErrStateConflict, id, task.TotalProducts)
		}

		if cause == nil && persist != nil {
			if err := persist(); err != nil {
				cause = fmt.Errorf("failed to store record: %w", err)
			}
		}

		if cause != nil {
			task.FailedProducts++
			outcome.Outcome = model.ActivityFailed
			outcome.Error = cause.Error()
			m.appendActivity(task, url, model.ActivityFailed, cause.Error())
		} else {
			task.CollectedProducts++
			outcome.Outcome = model.ActivityCollected
			m.appendActivity(task, url, model.ActivityCollected, "")
		}

		task.Progress = model.ComputeProgress(task.CollectedProducts, task.FailedProducts, task.TotalProducts)

		if task.CollectedProducts+task.FailedProducts == task.TotalProducts {
			if task.CollectedProducts > 0 {
				m.finish(task, model.TaskStatusCompleted, "")
			} else {
				m.finish(task, model.TaskStatusFailed, "every item failed")
			}
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}

	outcome.Progress = task.Progress
	outcome.Status = task.Status

	if outcome.Outcome == model.ActivityDiscarded {
		slog.Info("Outcome discarded", "task_id", id, "url", url, "status", string(task.Status), "reason", outcome.Error)
		return outcome, nil
	}
	if task.Status.IsTerminal() {
		slog.Info("Task finished", "task_id", id, "status", string(task.Status),
			"collected", task.CollectedProducts, "failed", task.FailedProducts)
	}
	return outcome, nil
}

// Cancel stops a non-terminal task. Already collected records stay.
func (m *Manager) Cancel(id string) (*model.CollectionTask, error) {
	task, err := m.update(id, func(task *model.CollectionTask) error {
		if task.Status.IsTerminal() {
			return fmt.Errorf("%w: task %s is already %s", model.ErrStateConflict, id, task.Status)
		}
		m.finish(task, model.TaskStatusCancelled, "cancelled by operator")
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Task cancelled", "task_id", id, "collected", task.CollectedProducts, "failed", task.FailedProducts)
	return task, nil
}

// Fail ends a non-terminal task that could not run at all, e.g. when shop
// discovery failed.
func (m *Manager) Fail(id string, reason string) (*model.CollectionTask, error) {
	return m.update(id, func(task *model.CollectionTask) error {
		if task.Status.IsTerminal() {
			return fmt.Errorf("%w: task %s is already %s", model.ErrStateConflict, id, task.Status)
		}
		m.finish(task, model.TaskStatusFailed, reason)
		return nil
	})
}

func (m *Manager) Snapshot(id string) (*model.CollectionTask, error) {
	unlock := m.lock(id)
	defer unlock()
	return m.repo.GetTask(id)
}

// Active reports whether new items of the task may still be dispatched.
func (m *Manager) Active(id string) bool {
	task, err := m.Snapshot(id)
	if err != nil {
		return false
	}
	return !task.Status.IsTerminal()
}

func (m *Manager) transition(task *model.CollectionTask, to model.TaskStatus, message string) {
	from := task.Status
	task.Status = to
	m.appendActivity(task, "", model.ActivityState, fmt.Sprintf("%s -> %s", from, to)+suffix(message))
}

func (m *Manager) finish(task *model.CollectionTask, to model.TaskStatus, message string) {
	now := m.now()
	task.CompletedAt = &now
	m.transition(task, to, message)
}

func (m *Manager) appendActivity(task *model.CollectionTask, url string, outcome model.ActivityOutcome, message string) {
	task.Activity = append(task.Activity, model.ActivityEntry{
		At:      m.now(),
		URL:     url,
		Outcome: outcome,
		Message: message,
	})
}

func suffix(message string) string {
	if message == "" {
		return ""
	}
	return ": " + message
}
