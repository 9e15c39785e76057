package database

import (
	"github.com/lysyi3m/listing-comb/app/model"
)

// RecordQuery narrows ListRecords. Zero values mean "any"; results are ordered by
// creation time.
type RecordQuery struct {
	TaskID string
	IDs    []string
	Status model.RecordStatus
	Limit  int
}

func (q RecordQuery) matches(r *model.CollectedRecord) bool {
	if q.TaskID != "" && r.TaskID != q.TaskID {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if len(q.IDs) > 0 {
		for _, id := range q.IDs {
			if id == r.ID {
				return true
			}
		}
		return false
	}
	return true
}
