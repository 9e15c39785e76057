package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrFetch          = errors.New("fetch error")
	ErrParse          = errors.New("parse error")
	ErrRuleEvaluation = errors.New("rule evaluation error")
	ErrStateConflict  = errors.New("state conflict")
	ErrNotFound       = errors.New("not found")
)

// FetchError carries the HTTP status of a failed fetch; StatusCode is 0 for
// network and timeout failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Retryable reports whether another attempt could succeed. Client errors other
// than 408 and 429 will not change on retry.
func (e *FetchError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	if e.StatusCode == 408 || e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}
