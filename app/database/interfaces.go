package database

import (
	"github.com/lysyi3m/listing-comb/app/model"
)

// Lookups of missing rows return an error wrapping model.ErrNotFound. Creating a
// row whose key already exists returns an error wrapping model.ErrStateConflict.

type TaskRepository interface {
	CreateTask(task model.CollectionTask) error
	GetTask(id string) (*model.CollectionTask, error)
	UpdateTask(task model.CollectionTask) error
	ListTasks(limit int) ([]model.CollectionTask, error)
}

// RecordRepository stores collected records keyed by id with a secondary index on
// the owning task.
type RecordRepository interface {
	CreateRecord(record model.CollectedRecord) error
	GetRecord(id string) (*model.CollectedRecord, error)
	UpdateRecord(record model.CollectedRecord) error
	DeleteRecord(id string) error
	ListRecords(query RecordQuery) ([]model.CollectedRecord, error)
	FindRecordByURL(taskID, url string) (*model.CollectedRecord, error)
}

// RuleRepository keeps rules in insertion order; updating a rule keeps its place.
type RuleRepository interface {
	ListRules() ([]model.BatchEditRule, error)
	GetRule(id string) (*model.BatchEditRule, error)
	UpsertRule(rule model.BatchEditRule) error
	DeleteRule(id string) error
}

type CatalogRepository interface {
	CreateCatalogRecord(record model.CatalogRecord) error
	GetCatalogRecord(id string) (*model.CatalogRecord, error)
	ListCatalogRecords(limit int) ([]model.CatalogRecord, error)
}

type Store interface {
	TaskRepository
	RecordRepository
	RuleRepository
	CatalogRepository
}
