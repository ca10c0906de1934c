// Package organizer encodes the long media table and delivers it to a
// directory or an S3 prefix.
package organizer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/s3store"
)

// FilenamePrefix starts every output filename.
const FilenamePrefix = "ROI_Media_"

// ContentType is sent with uploaded tables.
const ContentType = "text/csv; charset=utf-8"

var bom = []byte{0xEF, 0xBB, 0xBF}

// maxClaimAttempts bounds how often a name lost to a concurrent writer is retried.
const maxClaimAttempts = 100

// DeliveryErrorType represents the type of delivery error.
type DeliveryErrorType string

const (
	// PermissionDenied indicates insufficient permissions for the destination.
	PermissionDenied DeliveryErrorType = "PERMISSION_DENIED"
	// WriteFailed indicates the local file could not be written.
	WriteFailed DeliveryErrorType = "WRITE_FAILED"
	// UploadFailed indicates the S3 upload failed or S3 is not configured.
	UploadFailed DeliveryErrorType = "UPLOAD_FAILED"
)

// DeliveryError represents an error that occurred while writing output.
type DeliveryError struct {
	Type DeliveryErrorType
	Path string
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ObjectPutter uploads whole objects to object storage. PutObject must fail
// with s3store.ErrObjectExists rather than replace an existing object.
type ObjectPutter interface {
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// DeliveryResult describes where a table was written.
type DeliveryResult struct {
	Destination  string
	Bytes        int
	IsDuplicate  bool   // renamed because the default name was taken
	OriginalName string // default name before renaming (empty unless IsDuplicate)
}

// OutputFilename returns ROI_Media_<YYYY-MM-DD>.csv for the UTC date of now.
func OutputFilename(now time.Time) string {
	return FilenamePrefix + now.UTC().Format("2006-01-02") + ".csv"
}

// IsOutputFilename reports whether name looks like a file this package wrote.
func IsOutputFilename(name string) bool {
	return strings.HasPrefix(name, FilenamePrefix) && strings.EqualFold(filepath.Ext(name), ".csv")
}

// Encode renders records as UTF-8 CSV with a byte order mark and CRLF line endings.
func Encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(bom)

	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}
	return buf.Bytes(), nil
}

// Deliver encodes records and writes them to dest, which is either a local
// directory (created if missing) or s3://bucket/prefix. putter may be nil
// when dest is local.
func Deliver(ctx context.Context, records [][]string, dest string, now time.Time, putter ObjectPutter) (*DeliveryResult, error) {
	data, err := Encode(records)
	if err != nil {
		return nil, err
	}

	filename := OutputFilename(now)
	if s3store.IsURI(dest) {
		return upload(ctx, data, dest, filename, putter)
	}
	return writeLocal(data, dest, filename)
}

func upload(ctx context.Context, data []byte, dest, filename string, putter ObjectPutter) (*DeliveryResult, error) {
	if putter == nil {
		return nil, &DeliveryError{Type: UploadFailed, Path: dest, Err: fmt.Errorf("S3 output is not configured")}
	}

	bucket, prefix, err := s3store.ParseURI(dest)
	if err != nil {
		return nil, &DeliveryError{Type: UploadFailed, Path: dest, Err: err}
	}
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		name, err := nextFreeName(filename, func(candidate string) (bool, error) {
			return putter.ObjectExists(ctx, bucket, path.Join(prefix, candidate))
		})
		if err != nil {
			return nil, &DeliveryError{Type: UploadFailed, Path: dest, Err: err}
		}
		key := path.Join(prefix, name)

		err = putter.PutObject(ctx, bucket, key, data, ContentType)
		if errors.Is(err, s3store.ErrObjectExists) {
			continue
		}
		if err != nil {
			return nil, &DeliveryError{Type: UploadFailed, Path: dest, Err: err}
		}

		return newResult(s3store.Scheme+bucket+"/"+key, data, name, filename), nil
	}
	return nil, &DeliveryError{Type: UploadFailed, Path: dest, Err: errNoFreeName}
}

func writeLocal(data []byte, dir, filename string) (*DeliveryResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, classifyWriteError(dir, err)
	}

	// Write to a temp file first so a failed write never leaves a partial table.
	tmp, err := os.CreateTemp(dir, ".roipivot-*.tmp")
	if err != nil {
		return nil, classifyWriteError(dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, classifyWriteError(tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, classifyWriteError(tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return nil, classifyWriteError(tmpPath, err)
	}

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		name := UniqueName(dir, filename)
		destPath := filepath.Join(dir, name)

		claimed, err := claim(destPath)
		if err != nil {
			return nil, classifyWriteError(destPath, err)
		}
		if !claimed {
			continue
		}
		// The placeholder is ours, so replacing it cannot clobber another table.
		if err := os.Rename(tmpPath, destPath); err != nil {
			os.Remove(destPath)
			return nil, classifyWriteError(destPath, err)
		}

		return newResult(destPath, data, name, filename), nil
	}
	return nil, &DeliveryError{Type: WriteFailed, Path: dir, Err: errNoFreeName}
}

var errNoFreeName = errors.New("no free output name")

// claim creates an empty placeholder at destPath. It reports false when the
// name is already taken.
func claim(destPath string) (bool, error) {
	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, f.Close()
}

func newResult(destination string, data []byte, name, filename string) *DeliveryResult {
	result := &DeliveryResult{
		Destination: destination,
		Bytes:       len(data),
	}
	if name != filename {
		result.IsDuplicate = true
		result.OriginalName = filename
	}
	return result
}

func classifyWriteError(path string, err error) error {
	if os.IsPermission(err) {
		return &DeliveryError{Type: PermissionDenied, Path: path, Err: err}
	}
	return &DeliveryError{Type: WriteFailed, Path: path, Err: err}
}
