package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// AuditReader reads events back from a log directory.
type AuditReader struct {
	logDir string
}

// NewAuditReader creates a reader for the given log directory.
func NewAuditReader(logDir string) *AuditReader {
	return &AuditReader{logDir: logDir}
}

// LogPath returns the log file the reader reads.
func (r *AuditReader) LogPath() string {
	return filepath.Join(r.logDir, LogFileName)
}

// ReadEvents returns every event in the log, oldest first. A missing log
// reads as empty.
func (r *AuditReader) ReadEvents() ([]AuditEvent, error) {
	events, err := ReadEvents(r.LogPath())
	if os.IsNotExist(err) {
		return []AuditEvent{}, nil
	}
	return events, err
}

// ReadEvents parses a JSON Lines log file. Blank lines are skipped; a
// malformed line is an error naming its line number.
func ReadEvents(path string) ([]AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)

	// Allow long lines (many media names).
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	return events, nil
}

// ListRuns groups events by run id, most recent run first. Events without a
// run id (LOG_INITIALIZED) are skipped.
func (r *AuditReader) ListRuns() ([]RunInfo, error) {
	events, err := r.ReadEvents()
	if err != nil {
		return nil, err
	}

	byID := make(map[RunID]*RunInfo)
	var order []RunID
	for _, e := range events {
		if e.RunID == "" {
			continue
		}
		info, ok := byID[e.RunID]
		if !ok {
			info = &RunInfo{RunID: e.RunID, Kind: RunKindConvert, StartTime: e.Timestamp}
			byID[e.RunID] = info
			order = append(order, e.RunID)
		}
		applyEvent(info, e)
	}

	runs := make([]RunInfo, 0, len(order))
	for _, id := range order {
		runs = append(runs, *byID[id])
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	return runs, nil
}

func applyEvent(info *RunInfo, e AuditEvent) {
	if e.Timestamp.After(info.EndTime) {
		info.EndTime = e.Timestamp
	}

	switch e.EventType {
	case EventWatchStart:
		info.Kind = RunKindWatch
		info.StartTime = e.Timestamp
	case EventWatchEnd:
		info.Kind = RunKindWatch
		// Counters on WATCH_END win over counted events if the log was cut short.
		if v, err := strconv.Atoi(e.Metadata["converted"]); err == nil && v > info.Converted {
			info.Converted = v
		}
		if v, err := strconv.Atoi(e.Metadata["failed"]); err == nil && v > info.Failed {
			info.Failed = v
		}
	case EventConvert:
		if e.Status == StatusSuccess {
			info.Converted++
		} else {
			info.Failed++
		}
		if e.SourcePath != "" {
			info.Sources = append(info.Sources, e.SourcePath)
		}
	}
}
