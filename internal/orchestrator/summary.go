package orchestrator

import (
	"fmt"
	"time"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/audit"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/converter"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/indexer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/watcher"
)

// Summary contains statistics from one conversion.
type Summary struct {
	RunID       audit.RunID
	Source      string
	Destination string // planned path when DryRun
	Bytes       int
	Rows        int      // long rows written, excluding the header
	Media       []string // first-discovered order
	Dates       int      // distinct dates
	SkippedRows int      // wide rows dropped for a blank date
	Ignored     []indexer.IgnoredHeader
	Duplicates  int
	Warnings    []string
	StoredRows  int
	DryRun      bool
	Records     [][]string // header plus rows, as delivered
	Duration    time.Duration
}

func newSummary(runID audit.RunID, source string, result *converter.Result, dryRun bool) *Summary {
	return &Summary{
		RunID:       runID,
		Source:      source,
		Rows:        len(result.Table.Rows),
		Media:       result.Index.MediaNames(),
		Dates:       len(result.Table.Dates()),
		SkippedRows: result.Table.SkippedRows,
		Ignored:     result.Index.Ignored,
		Duplicates:  len(result.Index.Duplicates),
		Warnings:    result.Index.Warnings,
		DryRun:      dryRun,
	}
}

// String returns the one-line result printed after a conversion.
func (s *Summary) String() string {
	verb := "Converted"
	if s.DryRun {
		verb = "Would convert"
	}
	return fmt.Sprintf("%s %s: %d rows (%d media, %d dates skipped)",
		verb, s.Source, s.Rows, len(s.Media), s.SkippedRows)
}

// WatchReport returns the line printed when a watch session ends.
func WatchReport(s *watcher.WatchSummary) string {
	if s == nil {
		return "Watched 0 files"
	}
	return fmt.Sprintf("Watched for %s: %d converted, %d failed, %d skipped",
		s.Duration.Round(time.Second), s.FilesConverted, s.FilesFailed, s.FilesSkipped)
}
