package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/audit"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/config"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/converter"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/discovery"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/output"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/s3store"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/scanner"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/store"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

const weeklyCSV = "\ufeffWeek,FB_Spend,fb_clicks,IG_spend,notes\r\n" +
	"2024-01-01,\"1,000\",5,50,hello\r\n" +
	",9,9,9,blank date\r\n"

var runDate = time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s/%s", bucket, key)
	}
	return data, nil
}

func (m *memObjects) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *memObjects) PutObject(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[bucket+"/"+key]; ok {
		return s3store.ErrObjectExists
	}
	m.objects[bucket+"/"+key] = data
	return nil
}

type env struct {
	dir      string
	outDir   string
	auditDir string
	dbPath   string
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	cfg      *config.Configuration
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:      dir,
		outDir:   filepath.Join(dir, "out"),
		auditDir: filepath.Join(dir, "audit"),
		dbPath:   filepath.Join(dir, "roi.db"),
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
	}
	e.cfg = config.Default()
	e.cfg.OutputDirectory = e.outDir
	e.cfg.SQLitePath = e.dbPath
	e.cfg.Audit.LogDirectory = e.auditDir
	return e
}

func (e *env) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (e *env) orchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return runDate }
	}
	out := output.New(output.Config{Verbose: true, Writer: e.stdout, ErrWriter: e.stderr})
	o, err := New(e.cfg, out, opts)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func (e *env) events(t *testing.T) []audit.AuditEvent {
	t.Helper()
	events, err := audit.ReadEvents(filepath.Join(e.auditDir, audit.LogFileName))
	require.NoError(t, err)
	return events
}

func TestConvertWeeklyExport(t *testing.T) {
	e := newEnv(t)
	input := e.write(t, "weekly.csv", weeklyCSV)
	o := e.orchestrator(t, Options{})

	summary, err := o.Convert(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "Converted "+input+": 2 rows (2 media, 1 dates skipped)", summary.String())
	assert.Equal(t, filepath.Join(e.outDir, "ROI_Media_2024-01-08.csv"), summary.Destination)
	assert.Equal(t, []string{"fb", "ig"}, summary.Media)
	assert.Equal(t, 1, summary.Dates)
	assert.Len(t, summary.Ignored, 1)
	assert.Equal(t, 2, summary.StoredRows)

	data, err := os.ReadFile(summary.Destination)
	require.NoError(t, err)
	want := "\ufeffDate,Media,Spend(TWD),Impressions,Clicks,Views,GRP,Reach,Lead,TVR\r\n" +
		"2024-01-01,fb,1000,0,5,0,0,0,0,0\r\n" +
		"2024-01-01,ig,50,0,0,0,0,0,0,0\r\n"
	assert.Equal(t, want, string(data))
	assert.Equal(t, len(data), summary.Bytes)

	// Verbose output names the dropped column.
	assert.Contains(t, e.stdout.String(), `ignored column 4 "notes"`)

	events := e.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventConvert, events[1].EventType)
	assert.Equal(t, audit.StatusSuccess, events[1].Status)
	assert.Equal(t, summary.RunID, events[1].RunID)
	require.NotNil(t, events[1].Conversion)
	assert.Equal(t, 2, events[1].Conversion.Rows)
	assert.Equal(t, 1, events[1].Conversion.IgnoredHeaders)

	s, err := store.Open(e.dbPath)
	require.NoError(t, err)
	defer s.Close()
	rows, err := s.Rows(context.Background(), input, vocabulary.Default())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1000", rows[0].Values[vocabulary.Spend].String())
}

func TestConvertTwiceSameDayDoesNotOverwrite(t *testing.T) {
	e := newEnv(t)
	input := e.write(t, "weekly.csv", weeklyCSV)
	o := e.orchestrator(t, Options{})

	first, err := o.Convert(context.Background(), input)
	require.NoError(t, err)
	second, err := o.Convert(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Destination, second.Destination)
	assert.Equal(t, "ROI_Media_2024-01-08_duplicate.csv", filepath.Base(second.Destination))

	a, _ := os.ReadFile(first.Destination)
	b, _ := os.ReadFile(second.Destination)
	assert.Equal(t, a, b, "reruns must be byte-identical")
}

func TestConvertFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantType converter.ConvertErrorType
	}{
		{"missing date column", "fb_spend,ig_spend\n1,2\n", converter.MissingDateColumn},
		{"no media", "week,notes\n2024-01-01,x\n", converter.NoMediaDetected},
		{"header only", "week,fb_spend\n", converter.EmptyOrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			input := e.write(t, "bad.csv", tt.content)
			o := e.orchestrator(t, Options{})

			_, err := o.Convert(context.Background(), input)
			require.Error(t, err)

			var convErr *converter.ConvertError
			require.True(t, errors.As(err, &convErr))
			assert.Equal(t, tt.wantType, convErr.Type)

			_, statErr := os.Stat(e.outDir)
			assert.True(t, os.IsNotExist(statErr), "no output directory should be created")

			events := e.events(t)
			require.Len(t, events, 2)
			assert.Equal(t, audit.StatusFailure, events[1].Status)
			require.NotNil(t, events[1].ErrorDetails)
			assert.Equal(t, string(tt.wantType), events[1].ErrorDetails.ErrorType)
			assert.Equal(t, "convert", events[1].ErrorDetails.Operation)
		})
	}
}

func TestConvertMissingFile(t *testing.T) {
	e := newEnv(t)
	o := e.orchestrator(t, Options{})

	_, err := o.Convert(context.Background(), filepath.Join(e.dir, "nope.csv"))

	var scanErr *scanner.ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, scanner.FileNotFound, scanErr.Type)
	assert.Equal(t, string(scanner.FileNotFound), ErrorType(err))
}

func TestConvertDryRun(t *testing.T) {
	e := newEnv(t)
	input := e.write(t, "weekly.csv", weeklyCSV)
	o := e.orchestrator(t, Options{DryRun: true})

	summary, err := o.Convert(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, filepath.Join(e.outDir, "ROI_Media_2024-01-08.csv"), summary.Destination)
	assert.Len(t, summary.Records, 3)
	assert.True(t, strings.HasPrefix(summary.String(), "Would convert"))

	_, statErr := os.Stat(e.outDir)
	assert.True(t, os.IsNotExist(statErr), "dry run must not write output")
	_, statErr = os.Stat(e.dbPath)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the database")

	events := e.events(t)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].Conversion)
	assert.True(t, events[1].Conversion.DryRun)
}

func TestConvertS3InputAndOutput(t *testing.T) {
	e := newEnv(t)
	e.cfg.OutputDirectory = "s3://reports/roi"
	e.cfg.SQLitePath = ""
	objects := newMemObjects()
	objects.objects["exports/weekly.csv"] = []byte(weeklyCSV)
	o := e.orchestrator(t, Options{Objects: objects})

	summary, err := o.Convert(context.Background(), "s3://exports/weekly.csv")
	require.NoError(t, err)

	assert.Equal(t, "s3://reports/roi/ROI_Media_2024-01-08.csv", summary.Destination)
	uploaded, ok := objects.objects["reports/roi/ROI_Media_2024-01-08.csv"]
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(uploaded, []byte("\ufeffDate,Media,")))

	again, err := o.Convert(context.Background(), "s3://exports/weekly.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/roi/ROI_Media_2024-01-08_duplicate.csv", again.Destination)
	assert.Equal(t, uploaded, objects.objects["reports/roi/ROI_Media_2024-01-08.csv"])
}

func TestNewRejectsInvalidVocabulary(t *testing.T) {
	cfg := config.Default()
	cfg.MetricMapping = map[string]vocabulary.MetricID{"cpm": "cost_per_mille"}

	_, err := New(cfg, nil, Options{})
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	e := newEnv(t)
	input := e.write(t, "weekly.csv", "week,fb_spend,fb_cpm,ig_cpm\n2024-01-01,1,2,3\n")
	o := e.orchestrator(t, Options{})

	report, err := o.Inspect(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, report.Convertible())
	require.Len(t, report.UnknownSuffixes, 1)
	assert.Equal(t, discovery.SuffixCount{Suffix: "cpm", Count: 2, Example: "fb_cpm"}, report.UnknownSuffixes[0])

	// Inspect never audits.
	assert.Len(t, e.events(t), 1)

	empty := e.write(t, "empty.csv", "\n\n")
	_, err = o.Inspect(context.Background(), empty)
	var convErr *converter.ConvertError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, converter.EmptyOrMalformedInput, convErr.Type)
}

func TestWatchConvertsDroppedFiles(t *testing.T) {
	e := newEnv(t)
	e.cfg.SQLitePath = ""
	e.cfg.Watch.DebounceSeconds = 0
	e.cfg.Watch.StableThresholdMs = 100
	dropDir := filepath.Join(e.dir, "drop")
	require.NoError(t, os.MkdirAll(dropDir, 0755))
	// Output lands in the drop folder; the watcher must not pick it up again.
	e.cfg.OutputDirectory = dropDir

	o := e.orchestrator(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		converted, failed, skipped int
		err                        error
	}
	done := make(chan result, 1)
	go func() {
		s, err := o.Watch(ctx, []string{dropDir})
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{s.FilesConverted, s.FilesFailed, s.FilesSkipped, nil}
	}()

	// Give the watcher time to register.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dropDir, "weekly.csv"), []byte(weeklyCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dropDir, "brief.pdf"), []byte("%PDF"), 0644))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		matches, _ := filepath.Glob(filepath.Join(dropDir, "ROI_Media_*.csv"))
		if len(matches) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)
	cancel()

	var r result
	select {
	case r = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	require.NoError(t, r.err)

	assert.GreaterOrEqual(t, r.converted, 1)
	assert.Equal(t, 0, r.failed)
	assert.GreaterOrEqual(t, r.skipped, 1, "the pdf is skipped")

	events := e.events(t)
	require.GreaterOrEqual(t, len(events), 4)
	assert.Equal(t, audit.EventWatchStart, events[1].EventType)
	last := events[len(events)-1]
	assert.Equal(t, audit.EventWatchEnd, last.EventType)
	assert.Equal(t, events[1].RunID, last.RunID)

	runs, err := audit.NewAuditReader(e.auditDir).ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, audit.RunKindWatch, runs[0].Kind)
}

func TestWatchStartFailureClosesAuditRun(t *testing.T) {
	e := newEnv(t)
	e.cfg.SQLitePath = ""
	o := e.orchestrator(t, Options{})

	_, err := o.Watch(context.Background(), []string{filepath.Join(e.dir, "missing")})
	require.Error(t, err)

	events := e.events(t)
	require.Len(t, events, 3)
	assert.Equal(t, audit.EventWatchStart, events[1].EventType)
	assert.Equal(t, audit.EventWatchEnd, events[2].EventType)
	assert.Equal(t, events[1].RunID, events[2].RunID)
	assert.NotContains(t, e.stderr.String(), "failed to write audit log")
}
