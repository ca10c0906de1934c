package organizer

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// duplicateSuffix matches "<base>_duplicate" and "<base>_duplicate_N" stems.
var duplicateSuffix = regexp.MustCompile(`^(.+)_duplicate(?:_(\d+))?$`)

// FileExists reports whether anything exists at path, including a dangling symlink.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// UniqueName returns filename if it is free in dir, otherwise the first free
// name in the sequence <stem>_duplicate<ext>, <stem>_duplicate_2<ext>, ...
// A filename that already carries a _duplicate suffix continues its own sequence.
func UniqueName(dir, filename string) string {
	name, _ := nextFreeName(filename, func(candidate string) (bool, error) {
		return FileExists(filepath.Join(dir, candidate)), nil
	})
	return name
}

// nextFreeName walks the duplicate sequence of filename until taken reports a
// free name.
func nextFreeName(filename string, taken func(name string) (bool, error)) (string, error) {
	exists, err := taken(filename)
	if err != nil || !exists {
		return filename, err
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	next := 1
	if m := duplicateSuffix.FindStringSubmatch(stem); m != nil {
		stem = m[1]
		next = 2
		if m[2] != "" {
			n, _ := strconv.Atoi(m[2])
			next = n + 1
		}
	}

	for n := next; ; n++ {
		candidate := stem + "_duplicate" + ext
		if n > 1 {
			candidate = stem + "_duplicate_" + strconv.Itoa(n) + ext
		}
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
