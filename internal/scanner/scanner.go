// Package scanner reads a wide export into a raw grid of strings.
package scanner

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/s3store"
)

// ScanErrorType represents the type of read error.
type ScanErrorType string

const (
	// FileNotFound indicates the input does not exist or is not a regular file.
	FileNotFound ScanErrorType = "FILE_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions to read the input.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
	// UnsupportedFormat indicates a spreadsheet format that cannot be read.
	UnsupportedFormat ScanErrorType = "UNSUPPORTED_FORMAT"
	// ParseFailure indicates the content could not be parsed as a table.
	ParseFailure ScanErrorType = "PARSE_FAILURE"
)

// ScanError represents an error that occurred while reading an input.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Type == ParseFailure && e.Err != nil {
		return string(e.Type) + ": " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Format is the detected layout of an input.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Grid is the raw content of an input. Rows[0] is the header row.
type Grid struct {
	Source string
	Format Format
	Rows   [][]string
}

// ObjectGetter fetches whole objects from object storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Reader reads local files and, when Objects is set, s3:// URIs.
type Reader struct {
	Objects ObjectGetter
}

// NewReader returns a Reader. objects may be nil when S3 is not configured.
func NewReader(objects ObjectGetter) *Reader {
	return &Reader{Objects: objects}
}

// DetectFormat picks a parser from the file extension. Unknown extensions are read as CSV.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls", ".ods", ".numbers":
		return "", &ScanError{Type: UnsupportedFormat, Path: path, Err: errors.New("save the sheet as .csv or .xlsx")}
	default:
		return FormatCSV, nil
	}
}

// Read loads path into a Grid.
func (r *Reader) Read(ctx context.Context, path string) (*Grid, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := r.load(ctx, path)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = ParseXLSX(bytes.NewReader(data))
	default:
		rows, err = ParseCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &ScanError{Type: ParseFailure, Path: path, Err: err}
	}

	return &Grid{Source: path, Format: format, Rows: rows}, nil
}

func (r *Reader) load(ctx context.Context, path string) ([]byte, error) {
	if s3store.IsURI(path) {
		if r.Objects == nil {
			return nil, &ScanError{Type: UnsupportedFormat, Path: path, Err: errors.New("S3 input is not configured")}
		}
		bucket, key, err := s3store.ParseURI(path)
		if err != nil {
			return nil, &ScanError{Type: FileNotFound, Path: path, Err: err}
		}
		data, err := r.Objects.GetObject(ctx, bucket, key)
		if err != nil {
			return nil, &ScanError{Type: FileNotFound, Path: path, Err: err}
		}
		return data, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, classifyOSError(path, err)
	}
	if info.IsDir() {
		return nil, &ScanError{Type: FileNotFound, Path: path, Err: errors.New("path is a directory")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyOSError(path, err)
	}
	return data, nil
}

func classifyOSError(path string, err error) error {
	if os.IsNotExist(err) {
		return &ScanError{Type: FileNotFound, Path: path, Err: err}
	}
	if os.IsPermission(err) {
		return &ScanError{Type: PermissionDenied, Path: path, Err: err}
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}

// ParseCSV reads comma-separated records. A UTF-8 BOM is dropped and UTF-16
// input with a BOM is decoded. Rows may have differing lengths; empty lines are skipped.
func ParseCSV(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ParseXLSX reads the first worksheet of a workbook using formatted cell values.
func ParseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(all))
	for _, row := range all {
		if isBlankRecord(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isBlankRecord reports a record with no cells or a single empty cell.
func isBlankRecord(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && record[0] == "")
}
