package database

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/lysyi3m/listing-comb/app/model"
)

// MemoryStore is an in-process Store used when no database path is configured
// and in tests. Values are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]model.CollectionTask
	records   map[string]model.CollectedRecord
	recordSeq map[string]int
	seq       int
	ruleOrder []string
	rules     map[string]model.BatchEditRule
	catalog   map[string]model.CatalogRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[string]model.CollectionTask),
		records:   make(map[string]model.CollectedRecord),
		recordSeq: make(map[string]int),
		rules:     make(map[string]model.BatchEditRule),
		catalog:   make(map[string]model.CatalogRecord),
	}
}

func cloneTask(t model.CollectionTask) model.CollectionTask {
	t.URLs = slices.Clone(t.URLs)
	t.Activity = slices.Clone(t.Activity)
	t.Settings.Filter = cloneFilterConfig(t.Settings.Filter)
	if t.StartedAt != nil {
		v := *t.StartedAt
		t.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		t.CompletedAt = &v
	}
	return t
}

func cloneFilterConfig(c model.ContentFilterConfig) model.ContentFilterConfig {
	c.PlatformNames = slices.Clone(c.PlatformNames)
	c.RegionNames = slices.Clone(c.RegionNames)
	c.CarrierNames = slices.Clone(c.CarrierNames)
	c.Blocklist = slices.Clone(c.Blocklist)
	if c.Replacements != nil {
		replacements := make(map[string]string, len(c.Replacements))
		for k, v := range c.Replacements {
			replacements[k] = v
		}
		c.Replacements = replacements
	}
	return c
}

func cloneRule(r model.BatchEditRule) model.BatchEditRule {
	r.Conditions = slices.Clone(r.Conditions)
	r.Actions = slices.Clone(r.Actions)
	return r
}

func cloneCatalog(c model.CatalogRecord) model.CatalogRecord {
	c.Tags = slices.Clone(c.Tags)
	c.Images = slices.Clone(c.Images)
	return c
}

func (s *MemoryStore) CreateTask(task model.CollectionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: task %s already exists", model.ErrStateConflict, task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *MemoryStore) GetTask(id string) (*model.CollectionTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", model.ErrNotFound, id)
	}
	task = cloneTask(task)
	return &task, nil
}

func (s *MemoryStore) UpdateTask(task model.CollectionTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("%w: task %s", model.ErrNotFound, task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *MemoryStore) ListTasks(limit int) ([]model.CollectionTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]model.CollectionTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *MemoryStore) CreateRecord(record model.CollectedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("%w: record %s already exists", model.ErrStateConflict, record.ID)
	}
	for _, existing := range s.records {
		if existing.TaskID == record.TaskID && existing.URL == record.URL {
			return fmt.Errorf("%w: record for %s already exists in task %s", model.ErrStateConflict, record.URL, record.TaskID)
		}
	}

	s.seq++
	s.recordSeq[record.ID] = s.seq
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) GetRecord(id string) (*model.CollectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	record = record.Clone()
	return &record, nil
}

func (s *MemoryStore) FindRecordByURL(taskID, url string) (*model.CollectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.TaskID == taskID && record.URL == url {
			record = record.Clone()
			return &record, nil
		}
	}
	return nil, fmt.Errorf("%w: record for %s in task %s", model.ErrNotFound, url, taskID)
}

func (s *MemoryStore) UpdateRecord(record model.CollectedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return fmt.Errorf("%w: record %s", model.ErrNotFound, record.ID)
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *MemoryStore) DeleteRecord(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	for _, entry := range s.catalog {
		if entry.RecordID == id {
			return fmt.Errorf("%w: record %s is published", model.ErrStateConflict, id)
		}
	}
	delete(s.records, id)
	delete(s.recordSeq, id)
	return nil
}

func (s *MemoryStore) ListRecords(query RecordQuery) ([]model.CollectedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.CollectedRecord
	for _, record := range s.records {
		if query.matches(&record) {
			records = append(records, record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return s.recordSeq[records[i].ID] < s.recordSeq[records[j].ID]
	})
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[:query.Limit]
	}
	return records, nil
}

func (s *MemoryStore) ListRules() ([]model.BatchEditRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]model.BatchEditRule, 0, len(s.ruleOrder))
	for _, id := range s.ruleOrder {
		rules = append(rules, cloneRule(s.rules[id]))
	}
	return rules, nil
}

func (s *MemoryStore) GetRule(id string) (*model.BatchEditRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", model.ErrNotFound, id)
	}
	rule = cloneRule(rule)
	return &rule, nil
}

func (s *MemoryStore) UpsertRule(rule model.BatchEditRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rules[rule.ID]; ok {
		rule.CreatedAt = existing.CreatedAt
	} else {
		s.ruleOrder = append(s.ruleOrder, rule.ID)
	}
	s.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (s *MemoryStore) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("%w: rule %s", model.ErrNotFound, id)
	}
	delete(s.rules, id)
	s.ruleOrder = slices.DeleteFunc(s.ruleOrder, func(v string) bool { return v == id })
	return nil
}

func (s *MemoryStore) CreateCatalogRecord(record model.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[record.ID]; ok {
		return fmt.Errorf("%w: catalog record %s already exists", model.ErrStateConflict, record.ID)
	}
	s.catalog[record.ID] = cloneCatalog(record)
	return nil
}

func (s *MemoryStore) GetCatalogRecord(id string) (*model.CatalogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.catalog[id]
	if !ok {
		return nil, fmt.Errorf("%w: catalog record %s", model.ErrNotFound, id)
	}
	record = cloneCatalog(record)
	return &record, nil
}

func (s *MemoryStore) ListCatalogRecords(limit int) ([]model.CatalogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.CatalogRecord, 0, len(s.catalog))
	for _, record := range s.catalog {
		records = append(records, cloneCatalog(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
