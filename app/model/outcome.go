package model

// ItemOutcome is streamed to callers of a running task, one per attempted URL.
type ItemOutcome struct {
	TaskID   string          `json:"taskId"`
	URL      string          `json:"url"`
	Outcome  ActivityOutcome `json:"outcome"`
	RecordID string          `json:"recordId,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
	Progress int             `json:"progress"`
	Status   TaskStatus      `json:"status"`
}

// RecordEdit describes what a batch edit did to one record.
type RecordEdit struct {
	RecordID string         `json:"recordId"`
	Matched  int            `json:"matched"`
	Changes  []FilterResult `json:"changes,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type BatchResult struct {
	EditedCount int          `json:"editedCount"`
	Results     []RecordEdit `json:"results"`
}

// PublishFailure reports a record that could not be published.
type PublishFailure struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error"`
}

type PublishResult struct {
	PublishedCount int              `json:"publishedCount"`
	Records        []CatalogRecord  `json:"records"`
	Failures       []PublishFailure `json:"failures,omitempty"`
}
