package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lysyi3m/listing-comb/app/collect"
	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/filter"
	"github.com/lysyi3m/listing-comb/app/metrics"
	"github.com/lysyi3m/listing-comb/app/model"
)

// CreateTask validates the request and stores a pending task. URLs are trimmed,
// deduplicated in order and, except for shop crawls, capped at MaxItems.
func (s *Service) CreateTask(spec TaskSpec) (*model.CollectionTask, error) {
	urls := dedupe(spec.URLs)
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: at least one URL is required", model.ErrValidation)
	}

	method := spec.Method
	if method == "" {
		method = model.TaskMethodBatch
		if len(urls) == 1 {
			method = model.TaskMethodSingle
		}
	}
	switch method {
	case model.TaskMethodSingle:
		if len(urls) != 1 {
			return nil, fmt.Errorf("%w: single tasks take exactly one URL, got %d", model.ErrValidation, len(urls))
		}
	case model.TaskMethodBatch, model.TaskMethodShop:
	default:
		return nil, fmt.Errorf("%w: unknown method %q", model.ErrValidation, method)
	}

	sourceID := spec.SourceID
	if sourceID == "" {
		detection := s.registry.Detect(urls[0])
		if detection.Source == nil {
			return nil, fmt.Errorf("%w: no source matches %s", model.ErrValidation, urls[0])
		}
		sourceID = detection.Source.ID
	}

	src, err := s.registry.Get(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown source %q", model.ErrValidation, sourceID)
	}
	if !src.Enabled {
		return nil, fmt.Errorf("%w: source %s is disabled", model.ErrValidation, sourceID)
	}

	for _, u := range urls {
		detection := s.registry.Detect(u)
		if !detection.IsValid {
			return nil, fmt.Errorf("%w: %s is not a %s URL", model.ErrValidation, u, src.Name)
		}
		if detection.Source.ID != src.ID {
			return nil, fmt.Errorf("%w: %s belongs to %s, not %s", model.ErrValidation, u, detection.Source.ID, src.ID)
		}
	}

	if err := validateSettings(spec.Settings); err != nil {
		return nil, err
	}

	if method != model.TaskMethodShop && spec.Settings.MaxItems > 0 && len(urls) > spec.Settings.MaxItems {
		slog.Debug("URL list capped", "source", sourceID, "requested", len(urls), "max_items", spec.Settings.MaxItems)
		urls = urls[:spec.Settings.MaxItems]
	}

	now := s.now()
	task := model.CollectionTask{
		ID:            uuid.NewString(),
		SourceID:      src.ID,
		Method:        method,
		URLs:          urls,
		Status:        model.TaskStatusPending,
		TotalProducts: len(urls),
		Settings:      spec.Settings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateTask(task); err != nil {
		return nil, err
	}

	slog.Info("Task created", "task_id", task.ID, "source", task.SourceID, "method", string(method), "urls", len(urls))
	return &task, nil
}

func validateSettings(settings model.CollectionSettings) error {
	if settings.MaxItems < 0 || settings.Timeout < 0 || settings.RetryCount < 0 || settings.Delay < 0 || settings.Concurrency < 0 {
		return fmt.Errorf("%w: numeric settings must not be negative", model.ErrValidation)
	}
	if settings.MinPrice < 0 || settings.MaxPrice < 0 {
		return fmt.Errorf("%w: price bounds must not be negative", model.ErrValidation)
	}
	if settings.MaxPrice > 0 && settings.MinPrice > settings.MaxPrice {
		return fmt.Errorf("%w: minPrice %.2f exceeds maxPrice %.2f", model.ErrValidation, settings.MinPrice, settings.MaxPrice)
	}

	switch settings.DownloadImages {
	case "", model.ImagePolicyNone, model.ImagePolicyFirst, model.ImagePolicyAll:
	default:
		return fmt.Errorf("%w: unknown image policy %q", model.ErrValidation, settings.DownloadImages)
	}

	if settings.Filter.Enabled {
		if err := filter.Validate(settings.Filter); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// RunTask starts a pending task and streams one outcome per attempted URL. The
// channel is buffered for every URL, so callers that stop reading never block the
// pipeline; it is closed when the task has nothing left to dispatch.
func (s *Service) RunTask(ctx context.Context, taskID string) (<-chan model.ItemOutcome, error) {
	task, err := s.manager.Snapshot(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusPending {
		return nil, fmt.Errorf("%w: task %s is %s", model.ErrStateConflict, taskID, task.Status)
	}

	if task.Method == model.TaskMethodShop {
		urls, err := s.pipeline.Discover(ctx, task)
		if err == nil && len(urls) == 0 {
			err = fmt.Errorf("%w: no product links found", model.ErrParse)
		}
		if err != nil {
			// The failure is recorded on the task; retrying the job would only hit a terminal task.
			s.failTask(taskID, "shop discovery failed: "+err.Error())
			out := make(chan model.ItemOutcome)
			close(out)
			return out, nil
		}
		if _, err := s.manager.SetTargets(taskID, urls); err != nil {
			return nil, err
		}
	}

	started, err := s.manager.Start(taskID)
	if err != nil {
		return nil, err
	}

	out := make(chan model.ItemOutcome, len(started.URLs)+1)
	if started.Status.IsTerminal() {
		metrics.RecordTaskFinished(string(started.Status))
		close(out)
		return out, nil
	}

	sink := &taskSink{service: s, task: started, out: out}

	go func() {
		defer close(out)

		if err := s.pipeline.Run(ctx, started, sink); err != nil {
			s.failTask(taskID, err.Error())
			return
		}

		// Dispatch stopped early (context cancelled) with items never attempted.
		if s.manager.Active(taskID) {
			reason := "stopped before every item was attempted"
			if ctx.Err() != nil {
				reason += ": " + ctx.Err().Error()
			}
			s.failTask(taskID, reason)
		}
	}()

	return out, nil
}

func (s *Service) failTask(taskID, reason string) {
	task, err := s.manager.Fail(taskID, reason)
	if err != nil {
		if !errors.Is(err, model.ErrStateConflict) {
			slog.Error("Failed to mark task failed", "task_id", taskID, "error", err)
		}
		return
	}
	metrics.RecordTaskFinished(string(task.Status))
	slog.Warn("Task failed", "task_id", taskID, "reason", reason)
}

func (s *Service) CancelTask(taskID string) (*model.CollectionTask, error) {
	task, err := s.manager.Cancel(taskID)
	if err != nil {
		return nil, err
	}
	metrics.RecordTaskFinished(string(task.Status))
	return task, nil
}

func (s *Service) GetTask(taskID string) (*model.CollectionTask, error) {
	return s.manager.Snapshot(taskID)
}

func (s *Service) ListTasks(limit int) ([]model.CollectionTask, error) {
	return s.store.ListTasks(limit)
}

// RecoverTasks runs at startup. Tasks left processing by a previous process are
// failed; pending tasks are returned so they can be queued again.
func (s *Service) RecoverTasks() ([]string, error) {
	all, err := s.store.ListTasks(0)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, task := range all {
		switch task.Status {
		case model.TaskStatusPending:
			pending = append(pending, task.ID)
		case model.TaskStatusProcessing:
			s.failTask(task.ID, "interrupted by restart")
		}
	}
	return pending, nil
}

// taskSink hands pipeline results to the lifecycle manager and stores records.
type taskSink struct {
	service *Service
	task    *model.CollectionTask
	out     chan<- model.ItemOutcome
}

func (k *taskSink) Active() bool {
	return k.service.manager.Active(k.task.ID)
}

func (k *taskSink) Deliver(result collect.ItemResult) {
	var (
		outcome  model.ItemOutcome
		recordID string
		err      error
	)

	if result.Err != nil {
		outcome, err = k.service.manager.RecordFailure(k.task.ID, result.URL, result.Err)
	} else {
		outcome, err = k.service.manager.RecordSuccess(k.task.ID, result.URL, func() error {
			id, err := k.service.storeRecord(result.Record)
			recordID = id
			return err
		})
	}
	if err != nil {
		slog.Error("Failed to record item outcome", "task_id", k.task.ID, "url", result.URL, "error", err)
		return
	}

	if outcome.Outcome == model.ActivityCollected {
		outcome.RecordID = recordID
	}
	outcome.Attempts = result.Attempts

	switch outcome.Outcome {
	case model.ActivityFailed:
		slog.Warn("Item failed", "task_id", k.task.ID, "url", result.URL, "attempts", result.Attempts, "error", outcome.Error)
	case model.ActivityDiscarded:
		slog.Debug("Item discarded", "task_id", k.task.ID, "url", result.URL)
	}

	metrics.RecordItem(k.task.SourceID, string(outcome.Outcome), result.Attempts)
	if outcome.Outcome != model.ActivityDiscarded && outcome.Status.IsTerminal() {
		metrics.RecordTaskFinished(string(outcome.Status))
	}

	k.out <- outcome
}

// storeRecord saves a collected record unless the task already holds one for the
// same canonical URL, in which case the existing id is returned.
func (s *Service) storeRecord(record *model.CollectedRecord) (string, error) {
	existing, err := s.store.FindRecordByURL(record.TaskID, record.URL)
	if err == nil {
		slog.Debug("Duplicate record skipped", "task_id", record.TaskID, "url", record.URL, "record_id", existing.ID)
		return existing.ID, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", err
	}

	if err := s.store.CreateRecord(*record); err != nil {
		return "", err
	}
	return record.ID, nil
}

func (s *Service) ListRecords(query database.RecordQuery) ([]model.CollectedRecord, error) {
	return s.store.ListRecords(query)
}

func (s *Service) GetRecord(id string) (*model.CollectedRecord, error) {
	return s.store.GetRecord(id)
}

func (s *Service) DeleteRecord(id string) error {
	unlock := s.lockRecord(id)
	defer unlock()
	return s.store.DeleteRecord(id)
}
