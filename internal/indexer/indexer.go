// Package indexer scans a header row once and records where every media metric lives.
package indexer

import (
	"fmt"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/classifier"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// IndexErrorType represents the type of header-scan failure.
type IndexErrorType string

const (
	MissingDateColumn IndexErrorType = "MISSING_DATE_COLUMN"
	NoMediaDetected   IndexErrorType = "NO_MEDIA_DETECTED"
)

// IndexError represents a header row that cannot be pivoted.
type IndexError struct {
	Type    IndexErrorType
	Headers int
}

func (e *IndexError) Error() string {
	switch e.Type {
	case MissingDateColumn:
		return fmt.Sprintf("no date column found among %d headers", e.Headers)
	case NoMediaDetected:
		return fmt.Sprintf("no <media>_<metric> columns found among %d headers", e.Headers)
	default:
		return fmt.Sprintf("header scan error (%s)", e.Type)
	}
}

// MediaGroup is one media channel and the column holding each of its metrics.
type MediaGroup struct {
	Name    string
	Columns map[vocabulary.MetricID]int
}

// Column returns the column index recorded for a metric, or -1.
func (g *MediaGroup) Column(id vocabulary.MetricID) int {
	if col, ok := g.Columns[id]; ok {
		return col
	}
	return -1
}

// IgnoredHeader is a non-date column that did not classify.
type IgnoredHeader struct {
	Column int
	Header string
	Reason classifier.UnclassifiedReason
}

// Duplicate records a (media, metric) pair seen in more than one column.
// The later column is the one used.
type Duplicate struct {
	Media    string
	Metric   vocabulary.MetricID
	Previous int
	Column   int
}

// Index is the result of scanning a header row.
type Index struct {
	DateColumn int
	DateHeader string
	Groups     []*MediaGroup // first-discovered order
	Ignored    []IgnoredHeader
	Duplicates []Duplicate
	Warnings   []string

	byName map[string]*MediaGroup
}

// Build locates the date column and groups every classified column by media.
// The date column is the first header containing a date keyword. Every other
// header is classified; a repeated (media, metric) pair keeps the right-most
// column and is reported in Duplicates.
func Build(headers []string, vocab *vocabulary.Vocabulary) (*Index, error) {
	idx := &Index{
		DateColumn: -1,
		byName:     make(map[string]*MediaGroup),
	}

	for i, h := range headers {
		if classifier.IsDateHeader(h, vocab) {
			idx.DateColumn = i
			idx.DateHeader = h
			break
		}
	}
	if idx.DateColumn == -1 {
		return nil, &IndexError{Type: MissingDateColumn, Headers: len(headers)}
	}

	for i, h := range headers {
		if i == idx.DateColumn {
			continue
		}

		c := classifier.Classify(h, vocab)
		if c.IsUnclassified() {
			idx.Ignored = append(idx.Ignored, IgnoredHeader{Column: i, Header: h, Reason: c.Reason})
			continue
		}
		if c.EmptyMedia {
			idx.Warnings = append(idx.Warnings, fmt.Sprintf("column %d %q has no media name before its metric suffix", i, h))
		}

		group, ok := idx.byName[c.Media]
		if !ok {
			group = &MediaGroup{Name: c.Media, Columns: make(map[vocabulary.MetricID]int)}
			idx.byName[c.Media] = group
			idx.Groups = append(idx.Groups, group)
		}

		if prev, seen := group.Columns[c.Metric]; seen {
			idx.Duplicates = append(idx.Duplicates, Duplicate{
				Media:    c.Media,
				Metric:   c.Metric,
				Previous: prev,
				Column:   i,
			})
		}
		group.Columns[c.Metric] = i
	}

	if len(idx.Groups) == 0 {
		return nil, &IndexError{Type: NoMediaDetected, Headers: len(headers)}
	}

	return idx, nil
}

// Group returns the media group with the given name.
func (idx *Index) Group(name string) (*MediaGroup, bool) {
	g, ok := idx.byName[name]
	return g, ok
}

// MediaNames returns the media names in discovery order.
func (idx *Index) MediaNames() []string {
	names := make([]string, len(idx.Groups))
	for i, g := range idx.Groups {
		names[i] = g.Name
	}
	return names
}
