package api

import (
	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/model"
	"github.com/lysyi3m/listing-comb/app/service"
	"github.com/lysyi3m/listing-comb/app/source"
	"github.com/lysyi3m/listing-comb/app/tasks"
)

// CoreService is the part of service.Service the handlers call.
type CoreService interface {
	tasks.TaskRunner
	tasks.BatchApplier

	CreateTask(spec service.TaskSpec) (*model.CollectionTask, error)
	GetTask(id string) (*model.CollectionTask, error)
	ListTasks(limit int) ([]model.CollectionTask, error)
	CancelTask(id string) (*model.CollectionTask, error)

	ListRecords(query database.RecordQuery) ([]model.CollectedRecord, error)
	GetRecord(id string) (*model.CollectedRecord, error)
	ReviewRecord(id string, status model.RecordStatus) (*model.CollectedRecord, error)
	DeleteRecord(id string) error

	ListRules() ([]model.BatchEditRule, error)
	UpsertRule(rule model.BatchEditRule) (*model.BatchEditRule, error)
	DeleteRule(id string) error

	Publish(recordIDs []string, settings model.PublishSettings) (*model.PublishResult, error)
	ListCatalog(limit int) ([]model.CatalogRecord, error)
}

type SourceDetector interface {
	Detect(rawURL string) source.Detection
	List() []model.Source
	Count() int
}

var (
	_ CoreService    = (*service.Service)(nil)
	_ SourceDetector = (*source.Registry)(nil)
)

type Handler struct {
	service   CoreService
	sources   SourceDetector
	scheduler tasks.TaskSchedulerInterface
}

type reviewRequest struct {
	Status model.RecordStatus `json:"status"`
}

type batchEditRequest struct {
	RecordIDs []string `json:"recordIds"`
	RuleIDs   []string `json:"ruleIds"`
	Async     bool     `json:"async"`
}

type publishRequest struct {
	RecordIDs []string              `json:"recordIds"`
	Settings  model.PublishSettings `json:"settings"`
}

type detectRequest struct {
	URL string `json:"url"`
}
