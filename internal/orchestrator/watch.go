package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/audit"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/watcher"
)

// watchExtensions are the drop-folder files worth converting.
var watchExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// Watch converts every export dropped into dirs until ctx is cancelled.
// Each file is converted on its own; one failure does not stop the session.
func (o *Orchestrator) Watch(ctx context.Context, dirs []string) (*watcher.WatchSummary, error) {
	var runID audit.RunID
	if o.audit != nil {
		id, err := o.audit.StartWatch(dirs)
		if err != nil {
			return nil, fmt.Errorf("failed to write audit log: %w", err)
		}
		runID = id
	} else {
		runID = audit.NewRunID()
	}

	w := watcher.New(o.watchConfig(), func(ctx context.Context, path string) error {
		if !watchExtensions[strings.ToLower(filepath.Ext(path))] {
			o.out.Verbose("Skipping %s: not a .csv or .xlsx export", path)
			return watcher.ErrSkipped
		}
		summary, err := o.convert(ctx, runID, path, false)
		if err != nil {
			return err
		}
		o.out.Info("%s", summary)
		return nil
	})
	w.OnError(func(path string, err error) {
		if path == "" {
			o.out.Warn("watcher: %v", err)
			return
		}
		o.out.Error("Error: %s: %v", path, err)
	})

	if err := w.Start(ctx, dirs); err != nil {
		o.endWatch(runID, 0, 0)
		return nil, err
	}
	o.out.Info("Watching %s (Ctrl+C to stop)", strings.Join(dirs, ", "))

	<-ctx.Done()
	summary := w.Stop()

	o.endWatch(runID, summary.FilesConverted, summary.FilesFailed)
	return summary, nil
}

func (o *Orchestrator) endWatch(runID audit.RunID, converted, failed int) {
	if o.audit == nil {
		return
	}
	if err := o.audit.EndWatch(runID, converted, failed); err != nil {
		o.out.Warn("failed to write audit log: %v", err)
	}
}

func (o *Orchestrator) watchConfig() *watcher.WatchConfig {
	wc := o.config.Watch
	patterns := wc.IgnorePatterns
	if len(patterns) > 0 {
		// Configured patterns extend the defaults rather than replace them.
		patterns = append(watcher.DefaultIgnorePatterns(), patterns...)
	}
	return &watcher.WatchConfig{
		DebounceSeconds:   wc.DebounceSeconds,
		StableThresholdMs: wc.StableThresholdMs,
		IgnorePatterns:    patterns,
	}
}
