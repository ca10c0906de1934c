package audit

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the time format used for audit event timestamps.
const TimestampFormat = time.RFC3339Nano

// eventJSON is the wire form of AuditEvent. Optional strings are pointers so
// they are omitted when empty.
type eventJSON struct {
	Timestamp       string             `json:"timestamp"`
	RunID           RunID              `json:"runId,omitempty"`
	EventType       EventType          `json:"eventType"`
	Status          OperationStatus    `json:"status"`
	SourcePath      *string            `json:"sourcePath,omitempty"`
	DestinationPath *string            `json:"destinationPath,omitempty"`
	Conversion      *ConversionDetails `json:"conversion,omitempty"`
	ErrorDetails    *ErrorDetails      `json:"errorDetails,omitempty"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
}

// MarshalJSON writes the timestamp in UTC RFC 3339 form and omits empty optional fields.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	ej := eventJSON{
		Timestamp:    e.Timestamp.UTC().Format(TimestampFormat),
		RunID:        e.RunID,
		EventType:    e.EventType,
		Status:       e.Status,
		Conversion:   e.Conversion,
		ErrorDetails: e.ErrorDetails,
		Metadata:     e.Metadata,
	}
	if e.SourcePath != "" {
		ej.SourcePath = &e.SourcePath
	}
	if e.DestinationPath != "" {
		ej.DestinationPath = &e.DestinationPath
	}
	return json.Marshal(ej)
}

// UnmarshalJSON parses an event written by MarshalJSON.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(TimestampFormat, ej.Timestamp)
	if err != nil {
		return err
	}

	*e = AuditEvent{
		Timestamp:    t,
		RunID:        ej.RunID,
		EventType:    ej.EventType,
		Status:       ej.Status,
		Conversion:   ej.Conversion,
		ErrorDetails: ej.ErrorDetails,
		Metadata:     ej.Metadata,
	}
	if ej.SourcePath != nil {
		e.SourcePath = *ej.SourcePath
	}
	if ej.DestinationPath != nil {
		e.DestinationPath = *ej.DestinationPath
	}
	return nil
}

// UnmarshalJSONLine parses one line of the log.
func UnmarshalJSONLine(data []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
