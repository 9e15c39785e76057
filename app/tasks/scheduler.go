package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize   = 300
	taskTimeout = 30 * time.Minute
	maxBackoff  = 30 * time.Second
)

type Scheduler struct {
	workerCount int
	observer    Observer
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	backoff     func(retry int) time.Duration
}

func NewScheduler(workerCount int, observer Observer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		workerCount: max(workerCount, 1),
		observer:    observer,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		backoff:     retryDelay,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	slog.Debug("Scheduler started", "workers", s.workerCount)
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	if s.observer != nil {
		s.observer.ObserveJob(string(task.GetType()), task.GetDuration().Seconds(), err)
	}

	if err == nil {
		slog.Info("Task completed", append(task.LogAttrs(), "duration", task.GetDuration().String())...)
		return
	}

	slog.Error("Worker task execution failed", append(task.LogAttrs(), "worker_id", workerID, "error", err)...)

	if !task.Retryable(err) {
		slog.Warn("Task not retried", append(task.LogAttrs(), "error", err)...)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", append(task.LogAttrs(), "max_retries", task.GetMaxRetries(), "last_error", err)...)
		return
	}

	task.IncrementRetryCount()
	delay := s.backoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", append(task.LogAttrs(), "max_retries", task.GetMaxRetries(), "delay", delay.String())...)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

func retryDelay(retry int) time.Duration {
	delay := time.Duration(1<<uint(retry-1)) * time.Second
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
