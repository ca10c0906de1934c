// Package output handles CLI output formatting including verbose mode and progress indicators.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// clearLine blanks a progress line and returns the cursor to column 0.
var clearLine = "\r" + strings.Repeat(" ", 60) + "\r"

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support.
// Watch mode writes from several goroutines, so every write holds mu.
type Output struct {
	config Config

	mu              sync.Mutex
	progressActive  bool
	progressTotal   int
	progressCurrent int
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{config: config}
}

// DefaultConfig returns a Config with TTY detection on stdout.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Discard returns an Output that writes nowhere.
func Discard() *Output {
	return New(Config{Writer: io.Discard, ErrWriter: io.Discard})
}

func (o *Output) emit(w io.Writer, prefix, format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.clearProgressLocked()
	msg := prefix + fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.emit(o.config.Writer, "", format, args...)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.emit(o.config.Writer, "", format, args...)
}

// Warn prints a non-fatal problem to stderr.
func (o *Output) Warn(format string, args ...interface{}) {
	o.emit(o.config.ErrWriter, "Warning: ", format, args...)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.emit(o.config.ErrWriter, "", format, args...)
}

// clearProgressLocked clears the current progress line if active. mu must be held.
func (o *Output) clearProgressLocked() {
	if o.progressActive && o.config.IsTTY {
		fmt.Fprint(o.config.Writer, clearLine)
	}
}

// progressEnabled reports whether progress lines are drawn at all.
func (o *Output) progressEnabled() bool {
	return o.config.IsTTY && !o.config.Verbose
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress(total int) {
	if !o.progressEnabled() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progressActive = true
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress redraws the progress line in place.
func (o *Output) UpdateProgress(current int, message string) {
	if !o.progressEnabled() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	if message == "" {
		message = "Writing row"
	}
	fmt.Fprintf(o.config.Writer, "\r%s %d/%d...", message, current, o.progressTotal)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	if !o.progressEnabled() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressActive = false
	fmt.Fprint(o.config.Writer, clearLine)
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
