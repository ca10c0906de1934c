package discovery

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/classifier"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

func TestInspectWeeklyExport(t *testing.T) {
	headers := []string{"Week", "FB_Spend", "fb_clicks", "IG_spend", "notes", "fb_cpm", "ig_cpm", "yt_ctr"}

	report := Inspect(headers, vocabulary.Default())

	if report.DateColumn != 0 || report.DateHeader != "Week" {
		t.Errorf("date column = %d %q, want 0 \"Week\"", report.DateColumn, report.DateHeader)
	}
	if !report.Convertible() {
		t.Error("report should be convertible")
	}
	if len(report.Headers) != len(headers) {
		t.Fatalf("expected a report per header, got %d", len(report.Headers))
	}

	wantRoles := []HeaderRole{RoleDate, RoleMetric, RoleMetric, RoleMetric, RoleIgnored, RoleIgnored, RoleIgnored, RoleIgnored}
	for i, h := range report.Headers {
		if h.Column != i || h.Header != headers[i] || h.Role != wantRoles[i] {
			t.Errorf("header %d = %+v, want role %s", i, h, wantRoles[i])
		}
	}
	if report.Headers[1].Media != "fb" || report.Headers[1].Metric != vocabulary.Spend || report.Headers[1].Token != "spend" {
		t.Errorf("unexpected metric report: %+v", report.Headers[1])
	}
	if report.Headers[4].Reason != classifier.NoMetricSuffix {
		t.Errorf("notes reason = %s", report.Headers[4].Reason)
	}
	if len(report.Ignored()) != 4 {
		t.Errorf("Ignored() = %d, want 4", len(report.Ignored()))
	}

	wantSuffixes := []SuffixCount{
		{Suffix: "cpm", Count: 2, Example: "fb_cpm"},
		{Suffix: "ctr", Count: 1, Example: "yt_ctr"},
	}
	if !reflect.DeepEqual(report.UnknownSuffixes, wantSuffixes) {
		t.Errorf("UnknownSuffixes = %+v, want %+v", report.UnknownSuffixes, wantSuffixes)
	}
}

func TestInspectCoverage(t *testing.T) {
	targets := []vocabulary.Metric{
		{ID: vocabulary.Spend, Label: "Spend"},
		{ID: vocabulary.Clicks, Label: "Clicks"},
	}
	vocab, err := vocabulary.New(targets, map[string]vocabulary.MetricID{
		"spend": vocabulary.Spend,
		"click": vocabulary.Clicks,
	}, nil)
	if err != nil {
		t.Fatalf("vocabulary.New() error = %v", err)
	}

	report := Inspect([]string{"date", "fb_spend", "fb_click", "ig_spend"}, vocab)

	want := []MediaCoverage{
		{Media: "fb", Metrics: []vocabulary.MetricID{vocabulary.Spend, vocabulary.Clicks}},
		{Media: "ig", Metrics: []vocabulary.MetricID{vocabulary.Spend}, Missing: []vocabulary.MetricID{vocabulary.Clicks}},
	}
	if !reflect.DeepEqual(report.Coverage, want) {
		t.Errorf("Coverage = %+v, want %+v", report.Coverage, want)
	}
}

func TestInspectWithoutDateColumn(t *testing.T) {
	report := Inspect([]string{"fb_spend", "ig_spend"}, vocabulary.Default())

	if report.HasDateColumn() {
		t.Errorf("expected no date column, got %d", report.DateColumn)
	}
	if report.Convertible() {
		t.Error("a header row without a date column is not convertible")
	}
	if len(report.Coverage) != 2 {
		t.Errorf("media should still be reported, got %+v", report.Coverage)
	}
}

func TestInspectWithoutMedia(t *testing.T) {
	report := Inspect([]string{"Date", "notes", ""}, vocabulary.Default())

	if !report.HasDateColumn() || report.Convertible() {
		t.Errorf("expected a date column and no media, got %+v", report)
	}
	if report.Headers[2].Reason != classifier.EmptyHeader {
		t.Errorf("blank header reason = %s", report.Headers[2].Reason)
	}
	if len(report.UnknownSuffixes) != 0 {
		t.Errorf("expected no suffixes, got %+v", report.UnknownSuffixes)
	}
}

func TestUnknownSuffixesSorted(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	vocab := vocabulary.Default()

	properties.Property("suffixes are ordered by count desc then name, counts sum to matches", prop.ForAll(
		func(suffixes []string) bool {
			headers := []string{"week"}
			for i, s := range suffixes {
				headers = append(headers, "m"+string(rune('a'+i%26))+"_"+s)
			}

			report := Inspect(headers, vocab)

			total := 0
			for i, sc := range report.UnknownSuffixes {
				total += sc.Count
				if i == 0 {
					continue
				}
				prev := report.UnknownSuffixes[i-1]
				if prev.Count < sc.Count || (prev.Count == sc.Count && prev.Suffix >= sc.Suffix) {
					return false
				}
			}
			return total == len(report.Ignored())
		},
		gen.SliceOf(gen.OneConstOf("cpm", "ctr", "cpc", "frequency", "conv").Map(func(v interface{}) string {
			return v.(string)
		})),
	))

	properties.TestingRun(t)
}
