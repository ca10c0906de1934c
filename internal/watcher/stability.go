package watcher

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrFileNotFound is returned when the file disappears before it settles.
var ErrFileNotFound = errors.New("file not found")

// ErrFileUnstable is returned when the file keeps changing past the timeout.
var ErrFileUnstable = errors.New("file did not stabilize within timeout")

// StabilityChecker waits until a file stops growing, so an export that is
// still being copied into the drop folder is not parsed half written.
type StabilityChecker struct {
	threshold time.Duration // size must stay unchanged this long
	timeout   time.Duration
	interval  time.Duration
}

// NewStabilityChecker creates a checker with a 30 second timeout that
// samples every threshold/4 (at least every 50ms).
func NewStabilityChecker(threshold time.Duration) *StabilityChecker {
	interval := threshold / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	return NewStabilityCheckerWithOptions(threshold, 30*time.Second, interval)
}

// NewStabilityCheckerWithOptions creates a checker with explicit timings.
func NewStabilityCheckerWithOptions(threshold, timeout, interval time.Duration) *StabilityChecker {
	return &StabilityChecker{
		threshold: threshold,
		timeout:   timeout,
		interval:  interval,
	}
}

// WaitForStable blocks until the size and modification time of path have
// not changed for the threshold, the timeout passes, or ctx is done.
func (s *StabilityChecker) WaitForStable(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	last, err := snapshot(path)
	if err != nil {
		return err
	}
	lastChange := time.Now()
	if s.threshold <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrFileUnstable
			}
			return ctx.Err()
		case <-ticker.C:
			current, err := snapshot(path)
			if err != nil {
				return err
			}
			if current != last {
				last = current
				lastChange = time.Now()
			} else if time.Since(lastChange) >= s.threshold {
				return nil
			}
		}
	}
}

// Threshold returns the configured stability threshold.
func (s *StabilityChecker) Threshold() time.Duration {
	return s.threshold
}

// Timeout returns the configured timeout.
func (s *StabilityChecker) Timeout() time.Duration {
	return s.timeout
}

type fileState struct {
	size    int64
	modTime time.Time
}

func snapshot(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, ErrFileNotFound
		}
		return fileState{}, err
	}
	return fileState{size: info.Size(), modTime: info.ModTime()}, nil
}
