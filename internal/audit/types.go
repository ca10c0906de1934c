// Package audit keeps an append-only JSON Lines log of conversions so an
// operator can see what was converted, when, and where it went.
package audit

import "time"

// LogFileName is the name of the log file inside the log directory.
const LogFileName = "roipivot-audit.jsonl"

// RunID identifies one CLI conversion or one watch session. It is a UUID v4.
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	EventConvert        EventType = "CONVERT"
	EventWatchStart     EventType = "WATCH_START"
	EventWatchEnd       EventType = "WATCH_END"
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
)

// RunKind distinguishes single conversions from watch sessions.
type RunKind string

const (
	RunKindConvert RunKind = "CONVERT"
	RunKindWatch   RunKind = "WATCH"
)

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// ConversionDetails records what a successful conversion produced.
type ConversionDetails struct {
	Rows           int      `json:"rows"`
	Media          []string `json:"media"`
	Dates          int      `json:"dates"`
	SkippedRows    int      `json:"skippedRows,omitempty"`
	IgnoredHeaders int      `json:"ignoredHeaders,omitempty"`
	Duplicates     int      `json:"duplicates,omitempty"`
	StoredRows     int      `json:"storedRows,omitempty"`
	DryRun         bool     `json:"dryRun,omitempty"`
}

// AuditEvent represents a single audit record.
type AuditEvent struct {
	Timestamp       time.Time          `json:"timestamp"`
	RunID           RunID              `json:"runId"`
	EventType       EventType          `json:"eventType"`
	Status          OperationStatus    `json:"status"`
	SourcePath      string             `json:"sourcePath,omitempty"`
	DestinationPath string             `json:"destinationPath,omitempty"`
	Conversion      *ConversionDetails `json:"conversion,omitempty"`
	ErrorDetails    *ErrorDetails      `json:"errorDetails,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
}

// RunInfo summarises the events of one run.
type RunInfo struct {
	RunID     RunID
	Kind      RunKind
	StartTime time.Time
	EndTime   time.Time
	Converted int
	Failed    int
	Sources   []string
}
