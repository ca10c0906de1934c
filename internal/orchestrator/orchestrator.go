// Package orchestrator coordinates the read, convert, deliver, store and
// audit steps for single files and watch sessions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/audit"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/config"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/converter"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/organizer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/output"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/s3store"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/scanner"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/store"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// ObjectStore reads inputs from and writes outputs to object storage.
type ObjectStore interface {
	scanner.ObjectGetter
	organizer.ObjectPutter
}

// Options adjusts a run without touching the configuration.
type Options struct {
	DryRun  bool             // convert and report, but write no table, rows or objects
	Objects ObjectStore      // nil: an S3 client is created on first s3:// use
	Now     func() time.Time // nil: time.Now
}

// Orchestrator runs conversions with one configuration. It is safe for
// concurrent use by watch-mode conversions.
type Orchestrator struct {
	config *config.Configuration
	vocab  *vocabulary.Vocabulary
	out    *output.Output
	opts   Options

	store *store.Store
	audit *audit.AuditWriter

	objectsOnce sync.Once
	objects     ObjectStore
	objectsErr  error
}

// New validates cfg and opens the SQLite store and audit log when they are
// configured. Close releases them.
func New(cfg *config.Configuration, out *output.Output, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if out == nil {
		out = output.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:  cfg,
		vocab:   vocab,
		out:     out,
		opts:    opts,
		objects: opts.Objects,
	}

	if cfg.SQLitePath != "" && !opts.DryRun {
		o.store, err = store.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Audit.LogDirectory != "" {
		o.audit, err = audit.NewAuditWriter(cfg.Audit.LogDirectory)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	return o, nil
}

// Close closes the SQLite store and the audit log.
func (o *Orchestrator) Close() error {
	var errs []error
	if o.store != nil {
		errs = append(errs, o.store.Close())
		o.store = nil
	}
	if o.audit != nil {
		errs = append(errs, o.audit.Close())
		o.audit = nil
	}
	return errors.Join(errs...)
}

// Vocabulary returns the vocabulary built from the configuration.
func (o *Orchestrator) Vocabulary() *vocabulary.Vocabulary {
	return o.vocab
}

// objectStore returns the S3 client, creating it the first time an s3://
// path is used so local-only runs never load AWS credentials.
func (o *Orchestrator) objectStore(ctx context.Context) (ObjectStore, error) {
	o.objectsOnce.Do(func() {
		if o.objects != nil {
			return
		}
		s, err := s3store.New(ctx, s3store.Config{
			Region:  o.config.S3.Region,
			Profile: o.config.S3.Profile,
		})
		if err != nil {
			o.objectsErr = err
			return
		}
		o.objects = s
	})
	return o.objects, o.objectsErr
}

func (o *Orchestrator) read(ctx context.Context, input string) (*scanner.Grid, error) {
	var objects scanner.ObjectGetter
	if s3store.IsURI(input) {
		s, err := o.objectStore(ctx)
		if err != nil {
			return nil, err
		}
		objects = s
	}
	return scanner.NewReader(objects).Read(ctx, input)
}

// Convert turns one wide export into the long table and delivers it.
func (o *Orchestrator) Convert(ctx context.Context, input string) (*Summary, error) {
	return o.convert(ctx, audit.NewRunID(), input, o.out.IsTTY())
}

// Steps shown on the progress line of a single conversion.
const (
	stepRead = iota + 1
	stepConvert
	stepDeliver
	stepStore
	stepCount = stepStore
)

func (o *Orchestrator) convert(ctx context.Context, runID audit.RunID, input string, showProgress bool) (*Summary, error) {
	start := o.opts.Now()
	progress := func(step int, msg string) {
		if showProgress {
			o.out.UpdateProgress(step, msg)
		}
	}
	if showProgress {
		o.out.StartProgress(stepCount)
		defer o.out.EndProgress()
	}

	progress(stepRead, "Reading")
	grid, err := o.read(ctx, input)
	if err != nil {
		return nil, o.fail(runID, input, "read", err)
	}

	progress(stepConvert, "Converting")
	result, err := converter.Convert(grid.Rows, o.vocab)
	if err != nil {
		return nil, o.fail(runID, input, "convert", err)
	}
	o.reportIndex(input, result)

	summary := newSummary(runID, input, result, o.opts.DryRun)
	records := result.Table.Records()

	if o.opts.DryRun {
		summary.Destination = o.plannedDestination(start)
	} else {
		progress(stepDeliver, "Writing")
		var putter organizer.ObjectPutter
		if s3store.IsURI(o.config.OutputDirectory) {
			s, err := o.objectStore(ctx)
			if err != nil {
				return nil, o.fail(runID, input, "deliver", &organizer.DeliveryError{
					Type: organizer.UploadFailed, Path: o.config.OutputDirectory, Err: err,
				})
			}
			putter = s
		}
		delivery, err := organizer.Deliver(ctx, records, o.config.OutputDirectory, start, putter)
		if err != nil {
			return nil, o.fail(runID, input, "deliver", err)
		}
		summary.Destination = delivery.Destination
		summary.Bytes = delivery.Bytes
		if delivery.IsDuplicate {
			o.out.Verbose("%s already exists, wrote %s", delivery.OriginalName, filepath.Base(delivery.Destination))
		}

		if o.store != nil {
			progress(stepStore, "Storing")
			stored, err := o.store.SaveTable(ctx, input, o.vocab, result.Table)
			if err != nil {
				// The CSV is already delivered; report rather than fail the run.
				o.out.Warn("failed to store %s in %s: %v", input, o.store.Path(), err)
				o.recordFailure(runID, input, "store", err)
			} else {
				summary.StoredRows = stored
			}
		}
	}

	summary.Records = records
	summary.Duration = o.opts.Now().Sub(start)
	o.recordConversion(runID, summary)
	return summary, nil
}

// plannedDestination is where a real run would write today, before any
// duplicate renaming.
func (o *Orchestrator) plannedDestination(now time.Time) string {
	name := organizer.OutputFilename(now)
	dest := o.config.OutputDirectory
	if s3store.IsURI(dest) {
		bucket, prefix, err := s3store.ParseURI(dest)
		if err == nil {
			return s3store.Scheme + bucket + "/" + joinKey(prefix, name)
		}
	}
	return filepath.Join(dest, name)
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// reportIndex lists what the conversion dropped or could not resolve.
func (o *Orchestrator) reportIndex(input string, result *converter.Result) {
	idx := result.Index
	o.out.Verbose("%s: date column %d %q, media %v", input, idx.DateColumn, idx.DateHeader, idx.MediaNames())
	for _, ig := range idx.Ignored {
		o.out.Verbose("  ignored column %d %q (%s)", ig.Column, ig.Header, ig.Reason)
	}
	for _, d := range idx.Duplicates {
		o.out.Verbose("  duplicate %s/%s: column %d replaces column %d", d.Media, d.Metric, d.Column, d.Previous)
	}
	for _, w := range idx.Warnings {
		o.out.Warn("%s: %s", input, w)
	}
}

// fail records a failed conversion and returns err unchanged.
func (o *Orchestrator) fail(runID audit.RunID, input, operation string, err error) error {
	o.recordFailure(runID, input, operation, err)
	return err
}

func (o *Orchestrator) recordFailure(runID audit.RunID, input, operation string, err error) {
	if o.audit == nil {
		return
	}
	if aerr := o.audit.RecordFailure(runID, input, operation, ErrorType(err), err); aerr != nil {
		o.out.Warn("failed to write audit log: %v", aerr)
	}
}

func (o *Orchestrator) recordConversion(runID audit.RunID, s *Summary) {
	if o.audit == nil {
		return
	}
	details := audit.ConversionDetails{
		Rows:           s.Rows,
		Media:          s.Media,
		Dates:          s.Dates,
		SkippedRows:    s.SkippedRows,
		IgnoredHeaders: len(s.Ignored),
		Duplicates:     s.Duplicates,
		StoredRows:     s.StoredRows,
		DryRun:         s.DryRun,
	}
	if err := o.audit.RecordConversion(runID, s.Source, s.Destination, details); err != nil {
		o.out.Warn("failed to write audit log: %v", err)
	}
}

// ErrorType names the kind of a run error for the audit log.
func ErrorType(err error) string {
	var convErr *converter.ConvertError
	var scanErr *scanner.ScanError
	var delivErr *organizer.DeliveryError
	switch {
	case errors.As(err, &convErr):
		return string(convErr.Type)
	case errors.As(err, &scanErr):
		return string(scanErr.Type)
	case errors.As(err, &delivErr):
		return string(delivErr.Type)
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	default:
		return "ERROR"
	}
}
