package organizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	if FileExists(filepath.Join(dir, "missing.csv")) {
		t.Error("FileExists returned true for a missing file")
	}
	touch(t, dir, "present.csv")
	if !FileExists(filepath.Join(dir, "present.csv")) {
		t.Error("FileExists returned false for an existing file")
	}
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		filename string
		want     string
	}{
		{"free", nil, "ROI_Media_2024-01-01.csv", "ROI_Media_2024-01-01.csv"},
		{"first duplicate", []string{"ROI_Media_2024-01-01.csv"}, "ROI_Media_2024-01-01.csv", "ROI_Media_2024-01-01_duplicate.csv"},
		{
			"second duplicate",
			[]string{"ROI_Media_2024-01-01.csv", "ROI_Media_2024-01-01_duplicate.csv"},
			"ROI_Media_2024-01-01.csv",
			"ROI_Media_2024-01-01_duplicate_2.csv",
		},
		{
			"gap is filled",
			[]string{"r.csv", "r_duplicate.csv", "r_duplicate_2.csv", "r_duplicate_3.csv"},
			"r.csv",
			"r_duplicate_4.csv",
		},
		{"continues numbered sequence", []string{"r_duplicate_5.csv"}, "r_duplicate_5.csv", "r_duplicate_6.csv"},
		{"no extension", []string{"report"}, "report", "report_duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tt.existing...)

			if got := UniqueName(dir, tt.filename); got != tt.want {
				t.Errorf("UniqueName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestUniqueNameNeverCollides(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("the returned name is free and keeps the extension", prop.ForAll(
		func(stem string, copies int) bool {
			dir := t.TempDir()
			filename := stem + ".csv"

			for i := 0; i < copies; i++ {
				name := UniqueName(dir, filename)
				if FileExists(filepath.Join(dir, name)) {
					t.Logf("UniqueName returned existing name %q", name)
					return false
				}
				if !strings.HasSuffix(name, ".csv") || !strings.HasPrefix(name, stem) {
					t.Logf("UniqueName(%q) = %q lost its stem or extension", filename, name)
					return false
				}
				touch(t, dir, name)
			}
			return true
		},
		gen.Identifier(),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
