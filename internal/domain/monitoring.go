package domain

import "time"

// Service tags used on monitoring records.
const (
	ServiceOpenAI     = "openai"
	ServiceStore      = "store"
	ServiceMedia      = "media"
	ServiceCommentary = "commentary"
	ServiceRecap      = "recap"
	ServiceMonitoring = "monitoring"
	ServiceSettings   = "settings"
)

// Operation tags used on monitoring records.
const (
	OperationHourlyRecap    = "hourly_recap"
	OperationUserRequest    = "user_request"
	OperationManualTrigger  = "manual_trigger"
	OperationCostAlert      = "cost_alert"
	OperationListCommentary = "get_latest_commentary"
	OperationGetConfig      = "get_config"
	OperationServeFrame     = "serve_frame"
	OperationDuplicateCheck = "duplicate_check"
	OperationSnapshotCount  = "snapshot_count"
)

// Severity grades an error record by business impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// UsageMetadata carries token accounting for model calls. Extra is for
// anything that does not fit the known fields.
type UsageMetadata struct {
	Model            string         `json:"model,omitempty"`
	PromptTokens     int64          `json:"prompt_tokens,omitempty"`
	CompletionTokens int64          `json:"completion_tokens,omitempty"`
	TotalTokens      int64          `json:"total_tokens,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// UsageRecord is an append-only fact about one governed operation.
type UsageRecord struct {
	ID         int64          `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	Operation  string         `json:"operation"`
	UserID     string         `json:"userId,omitempty"`
	Success    bool           `json:"success"`
	DurationMS *int64         `json:"durationMs,omitempty"`
	Cost       *float64       `json:"cost,omitempty"`
	Metadata   *UsageMetadata `json:"metadata,omitempty"`
}

// ErrorRecord is an append-only fact about a failed operation.
type ErrorRecord struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	UserID    string    `json:"userId,omitempty"`
	Error     string    `json:"error"`
	Severity  Severity  `json:"severity"`
}

// ServiceUsage is the per-service slice of a usage summary.
type ServiceUsage struct {
	Operations  int      `json:"operations"`
	Cost        float64  `json:"cost"`
	Success     int      `json:"success"`
	AvgDuration *float64 `json:"avgDurationMs,omitempty"`
	P95Duration *float64 `json:"p95DurationMs,omitempty"`
}

// UsageSummary aggregates usage records over a trailing window.
type UsageSummary struct {
	Window          time.Duration           `json:"-"`
	Since           time.Time               `json:"since"`
	TotalOperations int                     `json:"totalOperations"`
	TotalCost       float64                 `json:"totalCost"`
	SuccessRate     float64                 `json:"successRate"`
	Services        map[string]ServiceUsage `json:"services"`
}

// ErrorSummary aggregates error records over a trailing window.
type ErrorSummary struct {
	Window      time.Duration    `json:"-"`
	Since       time.Time        `json:"since"`
	TotalErrors int              `json:"totalErrors"`
	BySeverity  map[Severity]int `json:"bySeverity"`
	ByService   map[string]int   `json:"byService"`
}
