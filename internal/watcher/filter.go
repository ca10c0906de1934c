package watcher

import (
	"path/filepath"
	"strings"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/organizer"
)

// DefaultIgnorePatterns returns the patterns for files that are never
// wide exports: partial downloads, editor lock files and our own temp files.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.partial",
		"*.download",
		"*.crdownload",
		"~$*",         // Excel/LibreOffice lock files
		".~*",         // .~lock.report.csv#
		".roipivot-*", // in-progress output writes
		".DS_Store",
	}
}

// FileFilter decides which dropped files are skipped. Files named like
// our own output are always skipped so a watch folder may double as the
// output directory.
type FileFilter struct {
	patterns []string
}

// NewFileFilter creates a FileFilter. Nil or empty patterns mean the defaults.
func NewFileFilter(patterns []string) *FileFilter {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns()
	}
	return &FileFilter{patterns: patterns}
}

// ShouldIgnore matches the base name of path against the glob patterns.
// A pattern without a wildcard that starts with "." is also tried as a
// case-insensitive extension.
func (f *FileFilter) ShouldIgnore(path string) bool {
	filename := filepath.Base(path)
	if organizer.IsOutputFilename(filename) {
		return true
	}

	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}
		if strings.HasPrefix(pattern, ".") && !strings.ContainsAny(pattern, "*?[") {
			if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(pattern)) {
				return true
			}
		}
	}
	return false
}

// Patterns returns a copy of the ignore patterns.
func (f *FileFilter) Patterns() []string {
	result := make([]string, len(f.patterns))
	copy(result, f.patterns)
	return result
}

// AddPattern appends an ignore pattern.
func (f *FileFilter) AddPattern(pattern string) {
	f.patterns = append(f.patterns, pattern)
}

// IsTemporaryFile checks path against the default patterns.
func IsTemporaryFile(path string) bool {
	return NewFileFilter(nil).ShouldIgnore(path)
}
