package service

import (
	"github.com/lysyi3m/listing-comb/app/model"
)

// TaskSpec is the operator input for a new collection task. SourceID may be left
// empty to take the source detected from the first URL.
type TaskSpec struct {
	SourceID string                   `json:"sourceId"`
	Method   model.TaskMethod         `json:"method"`
	URLs     []string                 `json:"urls"`
	Settings model.CollectionSettings `json:"settings"`
}
