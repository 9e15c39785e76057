package model

import "fmt"

var recordStatusRank = map[RecordStatus]int{
	RecordStatusDraft:         0,
	RecordStatusPendingReview: 1,
	RecordStatusApproved:      2,
	RecordStatusRejected:      2,
	RecordStatusPublished:     3,
}

// CanTransition reports whether a record may move from one status to another.
// Statuses only advance; approved and rejected are siblings and rejected is a dead end.
func CanTransition(from, to RecordStatus) bool {
	fromRank, ok := recordStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := recordStatusRank[to]
	if !ok {
		return false
	}
	if from == RecordStatusRejected {
		return false
	}
	if to == RecordStatusPublished {
		return from == RecordStatusApproved
	}
	return toRank > fromRank
}

// AdvanceStatus moves the record to the given status or returns ErrStateConflict.
func (r *CollectedRecord) AdvanceStatus(to RecordStatus) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: record %s cannot move from %s to %s", ErrStateConflict, r.ID, r.Status, to)
	}
	r.Status = to
	return nil
}

// ComputeProgress returns round(100*(collected+failed)/total), or 0 when total is 0.
func ComputeProgress(collected, failed, total int) int {
	if total <= 0 {
		return 0
	}
	done := collected + failed
	return (200*done + total) / (2 * total)
}
