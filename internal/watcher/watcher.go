// Package watcher converts wide exports as they are dropped into folders.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig contains watcher settings.
type WatchConfig struct {
	DebounceSeconds   int      // quiet period after the last event (default: 2)
	StableThresholdMs int      // how long the size must stay put (default: 1000)
	IgnorePatterns    []string // glob patterns on the base name
}

// DefaultWatchConfig returns the default watch settings.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceSeconds:   2,
		StableThresholdMs: 1000,
		IgnorePatterns:    DefaultIgnorePatterns(),
	}
}

// WatchSummary contains stats from a watch session.
type WatchSummary struct {
	FilesConverted int
	FilesFailed    int
	FilesSkipped   int
	Duration       time.Duration
}

// FileHandler converts one settled file. A nil error counts as converted,
// ErrSkipped as skipped and anything else as failed.
type FileHandler func(ctx context.Context, path string) error

// ErrSkipped lets a FileHandler decline a file without counting a failure.
var ErrSkipped = errors.New("file skipped")

// Watcher monitors directories for new or rewritten files.
type Watcher struct {
	config      *WatchConfig
	fileHandler FileHandler
	onError     func(path string, err error)
	fsWatcher   *fsnotify.Watcher
	fileFilter  *FileFilter
	debouncer   *Debouncer
	stability   *StabilityChecker
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	loop        sync.WaitGroup
	inflight    sync.WaitGroup
	startTime   time.Time

	mu             sync.Mutex
	stopped        bool
	filesConverted int
	filesFailed    int
	filesSkipped   int
}

// New creates a Watcher. A nil config means DefaultWatchConfig.
func New(config *WatchConfig, fileHandler FileHandler) *Watcher {
	if config == nil {
		config = DefaultWatchConfig()
	}
	w := &Watcher{
		config:      config,
		fileHandler: fileHandler,
		fileFilter:  NewFileFilter(config.IgnorePatterns),
		stability:   NewStabilityChecker(time.Duration(config.StableThresholdMs) * time.Millisecond),
		done:        make(chan struct{}),
	}
	w.debouncer = NewDebouncer(time.Duration(config.DebounceSeconds)*time.Second, w.process)
	return w
}

// OnError registers a callback for failed files and fsnotify errors.
// path is empty for watcher-level errors. Call before Start.
func (w *Watcher) OnError(fn func(path string, err error)) {
	w.onError = fn
}

// Start begins watching dirs. Files already present are left alone.
func (w *Watcher) Start(ctx context.Context, dirs []string) error {
	if len(dirs) == 0 {
		return errors.New("no directories to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			fsWatcher.Close()
			return err
		}
		if err := fsWatcher.Add(absDir); err != nil {
			fsWatcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.fsWatcher = fsWatcher
	w.mu.Unlock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.startTime = time.Now()
	w.done = make(chan struct{})

	w.loop.Add(1)
	go w.processEvents()

	return nil
}

// Stop cancels pending and running conversions, waits for them to return
// and reports the session.
func (w *Watcher) Stop() *WatchSummary {
	w.mu.Lock()
	alreadyStopped := w.stopped
	w.stopped = true
	w.mu.Unlock()

	if !alreadyStopped && w.fsWatcher != nil {
		close(w.done)
		w.loop.Wait()
		w.debouncer.Close()
		w.cancel()
		w.inflight.Wait()
		w.fsWatcher.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return &WatchSummary{
		FilesConverted: w.filesConverted,
		FilesFailed:    w.filesFailed,
		FilesSkipped:   w.filesSkipped,
		Duration:       time.Since(w.startTime),
	}
}

func (w *Watcher) processEvents() {
	defer w.loop.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError("", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if w.fileFilter.ShouldIgnore(event.Name) {
		// Writes to an ignored file would inflate the count.
		if event.Has(fsnotify.Create) {
			w.count(ErrSkipped)
		}
		return
	}
	w.debouncer.Add(event.Name)
}

// process runs on a debounce timer goroutine.
func (w *Watcher) process(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// Renamed away or a new subdirectory; neither is an export.
		return
	}

	if err := w.stability.WaitForStable(w.ctx, path); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrFileNotFound) {
			return
		}
		w.count(err)
		w.reportError(path, err)
		return
	}

	if w.fileHandler == nil {
		w.count(nil)
		return
	}
	err = w.fileHandler(w.ctx, path)
	w.count(err)
	if err != nil && !errors.Is(err, ErrSkipped) {
		w.reportError(path, err)
	}
}

func (w *Watcher) count(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		w.filesConverted++
	case errors.Is(err, ErrSkipped):
		w.filesSkipped++
	default:
		w.filesFailed++
	}
}

func (w *Watcher) reportError(path string, err error) {
	if w.onError != nil {
		w.onError(path, err)
	}
}

// Config returns the watcher configuration.
func (w *Watcher) Config() *WatchConfig {
	return w.config
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsWatcher != nil && !w.stopped
}
