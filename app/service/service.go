package service

import (
	"sync"
	"time"

	"github.com/lysyi3m/listing-comb/app/collect"
	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/publish"
	"github.com/lysyi3m/listing-comb/app/rules"
	"github.com/lysyi3m/listing-comb/app/source"
	"github.com/lysyi3m/listing-comb/app/tasks"
)

// Service is the surface the rest of the application talks to: task creation and
// execution, rule management, batch edits, review and publishing.
type Service struct {
	store     database.Store
	registry  *source.Registry
	pipeline  *collect.Pipeline
	manager   *tasks.Manager
	engine    *rules.Engine
	publisher *publish.Publisher
	now       func() time.Time

	recordMu    sync.Mutex
	recordLocks map[string]*sync.Mutex
}

func New(store database.Store, registry *source.Registry, pipeline *collect.Pipeline,
	manager *tasks.Manager, engine *rules.Engine, publisher *publish.Publisher) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		pipeline:  pipeline,
		manager:   manager,
		engine:    engine,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },

		recordLocks: make(map[string]*sync.Mutex),
	}
}

// lockRecord serializes read-modify-write cycles on one record: edits, review,
// publish and delete.
func (s *Service) lockRecord(id string) func() {
	s.recordMu.Lock()
	l, ok := s.recordLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.recordLocks[id] = l
	}
	s.recordMu.Unlock()

	l.Lock()
	return l.Unlock
}

var (
	_ tasks.TaskRunner   = (*Service)(nil)
	_ tasks.BatchApplier = (*Service)(nil)
)
