package model

import (
	"encoding/json"
	"time"
)

type SourceKind string

const (
	SourceKindProduct SourceKind = "product"
	SourceKindNews    SourceKind = "news"
)

// Source is immutable reference data describing one platform or news outlet.
type Source struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Kind      SourceKind      `json:"kind" yaml:"kind"`
	Patterns  []SourcePattern `json:"patterns" yaml:"patterns"`
	RateLimit int             `json:"rateLimit" yaml:"rate_limit"` // requests per minute
	Enabled   bool            `json:"enabled" yaml:"enabled"`
}

// SourcePattern matches a URL by host suffix and, optionally, an id-bearing path
// (first capture group of Path) or query parameter.
type SourcePattern struct {
	Host    string `json:"host" yaml:"host"`
	Path    string `json:"path,omitempty" yaml:"path"`
	IDParam string `json:"idParam,omitempty" yaml:"id_param"`
}

type TaskMethod string

const (
	TaskMethodSingle TaskMethod = "single"
	TaskMethodBatch  TaskMethod = "batch"
	TaskMethodShop   TaskMethod = "shop"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

type ImagePolicy string

const (
	ImagePolicyNone  ImagePolicy = "none"
	ImagePolicyFirst ImagePolicy = "first"
	ImagePolicyAll   ImagePolicy = "all"
)

type ContentFilterConfig struct {
	Enabled       bool              `json:"enabled" yaml:"enabled"`
	PlatformNames []string          `json:"platformNames,omitempty" yaml:"platform_names"`
	RegionNames   []string          `json:"regionNames,omitempty" yaml:"region_names"`
	CarrierNames  []string          `json:"carrierNames,omitempty" yaml:"carrier_names"`
	Blocklist     []string          `json:"blocklist,omitempty" yaml:"blocklist"`
	Replacements  map[string]string `json:"replacements,omitempty" yaml:"replacements"`
	RemovePhones  bool              `json:"removePhones" yaml:"remove_phones"`
	RemoveEmails  bool              `json:"removeEmails" yaml:"remove_emails"`
	RemoveURLs    bool              `json:"removeUrls" yaml:"remove_urls"`
	FlagPatterns  bool              `json:"flagPatterns" yaml:"flag_patterns"`
	CaseSensitive bool              `json:"caseSensitive" yaml:"case_sensitive"`
}

type CollectionSettings struct {
	MaxItems       int                 `json:"maxItems"`
	Timeout        int                 `json:"timeout"` // seconds
	RetryCount     int                 `json:"retryCount"`
	Delay          int                 `json:"delay"` // milliseconds
	Concurrency    int                 `json:"concurrency"`
	Filter         ContentFilterConfig `json:"filter"`
	MinPrice       float64             `json:"minPrice"`
	MaxPrice       float64             `json:"maxPrice"` // 0 means unbounded
	DownloadImages ImagePolicy         `json:"downloadImages"`
}

func (s CollectionSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

func (s CollectionSettings) GetDelay() time.Duration {
	if s.Delay <= 0 {
		return 0
	}
	return time.Duration(s.Delay) * time.Millisecond
}

type ActivityOutcome string

const (
	ActivityCollected ActivityOutcome = "collected"
	ActivityFailed    ActivityOutcome = "failed"
	ActivityDiscarded ActivityOutcome = "discarded"
	ActivityState     ActivityOutcome = "state"
)

type ActivityEntry struct {
	At      time.Time       `json:"at"`
	URL     string          `json:"url,omitempty"`
	Outcome ActivityOutcome `json:"outcome"`
	Message string          `json:"message,omitempty"`
}

type CollectionTask struct {
	ID                string             `json:"id"`
	SourceID          string             `json:"sourceId"`
	Method            TaskMethod         `json:"method"`
	URLs              []string           `json:"urls"`
	Status            TaskStatus         `json:"status"`
	TotalProducts     int                `json:"totalProducts"`
	CollectedProducts int                `json:"collectedProducts"`
	FailedProducts    int                `json:"failedProducts"`
	Progress          int                `json:"progress"`
	Settings          CollectionSettings `json:"settings"`
	Activity          []ActivityEntry    `json:"activity,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

type RecordStatus string

const (
	RecordStatusDraft         RecordStatus = "draft"
	RecordStatusPendingReview RecordStatus = "pending_review"
	RecordStatusApproved      RecordStatus = "approved"
	RecordStatusRejected      RecordStatus = "rejected"
	RecordStatusPublished     RecordStatus = "published"
)

type Variant struct {
	SKU   string            `json:"sku,omitempty"`
	Name  string            `json:"name"`
	Price float64           `json:"price"`
	Stock int               `json:"stock"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type Shipping struct {
	From    string  `json:"from,omitempty"`
	Carrier string  `json:"carrier,omitempty"`
	Fee     float64 `json:"fee"`
	Days    int     `json:"days,omitempty"`
}

type CollectedRecord struct {
	ID            string          `json:"id"`
	TaskID        string          `json:"taskId"`
	SourceID      string          `json:"sourceId"`
	Kind          SourceKind      `json:"kind"`
	URL           string          `json:"url"`
	ExternalID    string          `json:"externalId,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Price         float64         `json:"price"`
	OriginalPrice float64         `json:"originalPrice,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Stock         int             `json:"stock"`
	Images        []string        `json:"images,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Category      string          `json:"category,omitempty"`
	Variants      []Variant       `json:"variants,omitempty"`
	Shipping      *Shipping       `json:"shipping,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	Status        RecordStatus    `json:"status"`
	FilterResults []FilterResult  `json:"filterResults,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so rule application never aliases the caller's slices.
func (r CollectedRecord) Clone() CollectedRecord {
	c := r
	c.Images = append([]string(nil), r.Images...)
	c.Tags = append([]string(nil), r.Tags...)
	c.Variants = append([]Variant(nil), r.Variants...)
	c.FilterResults = append([]FilterResult(nil), r.FilterResults...)
	if r.Shipping != nil {
		s := *r.Shipping
		c.Shipping = &s
	}
	if r.Raw != nil {
		c.Raw = append(json.RawMessage(nil), r.Raw...)
	}
	return c
}

type FilterAction string

const (
	FilterActionRemoved  FilterAction = "removed"
	FilterActionReplaced FilterAction = "replaced"
	FilterActionFlagged  FilterAction = "flagged"
)

// FilterResult is an append-only audit entry describing one alteration of a record.
type FilterResult struct {
	Type      string       `json:"type"`
	Field     string       `json:"field"`
	Original  string       `json:"original"`
	Result    string       `json:"result"`
	Action    FilterAction `json:"action"`
	CreatedAt time.Time    `json:"createdAt"`
}

type ConditionOperator string

const (
	OperatorEquals     ConditionOperator = "equals"
	OperatorContains   ConditionOperator = "contains"
	OperatorStartsWith ConditionOperator = "startsWith"
	OperatorEndsWith   ConditionOperator = "endsWith"
	OperatorRegex      ConditionOperator = "regex"
	OperatorRange      ConditionOperator = "range"
)

type RuleCondition struct {
	Field         string            `json:"field" yaml:"field"`
	Operator      ConditionOperator `json:"operator" yaml:"operator"`
	Value         string            `json:"value,omitempty" yaml:"value"`
	Min           *float64          `json:"min,omitempty" yaml:"min"`
	Max           *float64          `json:"max,omitempty" yaml:"max"`
	CaseSensitive bool              `json:"caseSensitive,omitempty" yaml:"case_sensitive"`
}

type ActionType string

const (
	ActionReplace   ActionType = "replace"
	ActionAppend    ActionType = "append"
	ActionPrepend   ActionType = "prepend"
	ActionRemove    ActionType = "remove"
	ActionCalculate ActionType = "calculate"
)

type RuleAction struct {
	Type        ActionType `json:"type" yaml:"type"`
	Field       string     `json:"field" yaml:"field"`
	Value       string     `json:"value,omitempty" yaml:"value"`
	Replacement string     `json:"replacement,omitempty" yaml:"replacement"`
	Formula     string     `json:"formula,omitempty" yaml:"formula"`
}

type BatchEditRule struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Enabled    bool            `json:"enabled" yaml:"enabled"`
	Conditions []RuleCondition `json:"conditions" yaml:"conditions"`
	Actions    []RuleAction    `json:"actions" yaml:"actions"`
	CreatedAt  time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time       `json:"updatedAt" yaml:"-"`
}

type PriceAdjustment string

const (
	PriceAdjustmentNone    PriceAdjustment = ""
	PriceAdjustmentPercent PriceAdjustment = "percent"
	PriceAdjustmentFixed   PriceAdjustment = "fixed"
)

type PublishSettings struct {
	PriceAdjustment   PriceAdjustment `json:"priceAdjustment"`
	PriceValue        float64         `json:"priceValue"`
	Category          string          `json:"category"`
	Tags              []string        `json:"tags"`
	Inventory         int             `json:"inventory"`
	RuleIDs           []string        `json:"ruleIds"`
	DescriptionFormat string          `json:"descriptionFormat"` // html (default) or markdown
}

type CatalogRecord struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"recordId"`
	SourceID    string    `json:"sourceId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Inventory   int       `json:"inventory"`
	Images      []string  `json:"images,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}
