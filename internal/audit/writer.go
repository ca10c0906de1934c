package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditWriter appends events to the log. It is safe for concurrent use;
// watch mode records conversions from several goroutines.
type AuditWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	logPath string
	now     func() time.Time
}

// NewAuditWriter opens (or creates) <logDir>/roipivot-audit.jsonl for
// appending. A new log starts with a LOG_INITIALIZED event.
func NewAuditWriter(logDir string) (*AuditWriter, error) {
	if logDir == "" {
		return nil, errors.New("audit log directory is empty")
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)

	isNewLog := false
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		isNewLog = true
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	w := &AuditWriter{
		file:    file,
		writer:  bufio.NewWriter(file),
		logPath: logPath,
		now:     time.Now,
	}

	if isNewLog {
		if err := w.WriteEvent(AuditEvent{EventType: EventLogInitialized, Status: StatusSuccess}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return w, nil
}

// NewRunID returns a fresh UUID v4 run id.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// LogPath returns the path of the log file.
func (w *AuditWriter) LogPath() string {
	return w.logPath
}

// WriteEvent appends one event and syncs it to disk. A zero Timestamp is
// replaced with the current time.
func (w *AuditWriter) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.New("audit log is closed")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now().UTC()
	}

	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// RecordConversion logs a successful conversion.
func (w *AuditWriter) RecordConversion(runID RunID, source, destination string, details ConversionDetails) error {
	return w.WriteEvent(AuditEvent{
		RunID:           runID,
		EventType:       EventConvert,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: destination,
		Conversion:      &details,
	})
}

// RecordFailure logs a conversion that produced no output.
func (w *AuditWriter) RecordFailure(runID RunID, source, operation, errorType string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return w.WriteEvent(AuditEvent{
		RunID:      runID,
		EventType:  EventConvert,
		Status:     StatusFailure,
		SourcePath: source,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errorType,
			ErrorMessage: msg,
			Operation:    operation,
		},
	})
}

// StartWatch logs the start of a watch session and returns its run id.
func (w *AuditWriter) StartWatch(dirs []string) (RunID, error) {
	runID := NewRunID()
	err := w.WriteEvent(AuditEvent{
		RunID:     runID,
		EventType: EventWatchStart,
		Status:    StatusSuccess,
		Metadata:  map[string]string{"directories": strings.Join(dirs, string(os.PathListSeparator))},
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// EndWatch logs the end of a watch session with its counters.
func (w *AuditWriter) EndWatch(runID RunID, converted, failed int) error {
	return w.WriteEvent(AuditEvent{
		RunID:     runID,
		EventType: EventWatchEnd,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"converted": strconv.Itoa(converted),
			"failed":    strconv.Itoa(failed),
		},
	})
}

// Close flushes and closes the log. Further writes fail.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
