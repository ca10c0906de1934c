// Package converter reshapes a wide grid (one row per date, one column per
// media metric) into the long media table.
package converter

import (
	"errors"
	"fmt"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/indexer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/pivot"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// ConvertErrorType represents the type of conversion failure.
type ConvertErrorType string

const (
	EmptyOrMalformedInput ConvertErrorType = "EMPTY_OR_MALFORMED_INPUT"
	MissingDateColumn     ConvertErrorType = "MISSING_DATE_COLUMN"
	NoMediaDetected       ConvertErrorType = "NO_MEDIA_DETECTED"
)

// ConvertError represents a fatal conversion failure. No output is produced.
type ConvertError struct {
	Type ConvertErrorType
	Rows int
	Err  error
}

func (e *ConvertError) Error() string {
	switch e.Type {
	case EmptyOrMalformedInput:
		return fmt.Sprintf("input needs a header row and at least one data row (got %d rows)", e.Rows)
	case MissingDateColumn:
		return fmt.Sprintf("missing date column: %s", causeText(e.Err))
	case NoMediaDetected:
		return fmt.Sprintf("no media detected: %s", causeText(e.Err))
	default:
		if e.Err != nil {
			return fmt.Sprintf("conversion failed (%s): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("conversion failed (%s)", e.Type)
	}
}

func causeText(err error) string {
	if err == nil {
		return "header row has no usable columns"
	}
	return err.Error()
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// Result holds the header index and the long table of a successful conversion.
type Result struct {
	Index *indexer.Index
	Table *pivot.Table
}

// Convert runs the whole reshape. grid[0] is the header row. Either a full
// table or an error is returned, never both.
func Convert(grid [][]string, vocab *vocabulary.Vocabulary) (*Result, error) {
	if len(grid) < 2 {
		return nil, &ConvertError{Type: EmptyOrMalformedInput, Rows: len(grid)}
	}

	idx, err := indexer.Build(grid[0], vocab)
	if err != nil {
		var idxErr *indexer.IndexError
		if errors.As(err, &idxErr) {
			switch idxErr.Type {
			case indexer.MissingDateColumn:
				return nil, &ConvertError{Type: MissingDateColumn, Rows: len(grid), Err: err}
			case indexer.NoMediaDetected:
				return nil, &ConvertError{Type: NoMediaDetected, Rows: len(grid), Err: err}
			}
		}
		return nil, fmt.Errorf("failed to index headers: %w", err)
	}

	return &Result{
		Index: idx,
		Table: pivot.Pivot(idx, grid[1:], vocab),
	}, nil
}
