// Package discovery reports how a wide export's headers would be read, so an
// operator can see which suffixes the vocabulary is missing before converting.
package discovery

import (
	"sort"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/classifier"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/normalizer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// HeaderRole is what a column would be used for.
type HeaderRole string

const (
	RoleDate    HeaderRole = "DATE"
	RoleMetric  HeaderRole = "METRIC"
	RoleIgnored HeaderRole = "IGNORED"
)

// HeaderReport describes one column.
type HeaderReport struct {
	Column int
	Header string
	Role   HeaderRole
	Media  string
	Metric vocabulary.MetricID
	Token  string
	Reason classifier.UnclassifiedReason // set for RoleIgnored
}

// SuffixCount is an unmatched trailing segment and how many headers end in it.
type SuffixCount struct {
	Suffix  string
	Count   int
	Example string // first header seen with this suffix
}

// MediaCoverage lists which target metrics a media group has columns for.
type MediaCoverage struct {
	Media   string
	Metrics []vocabulary.MetricID // in target order
	Missing []vocabulary.MetricID // reported as 0 in every row
}

// Report contains the results of inspecting a header row.
type Report struct {
	DateColumn      int // -1 when no header contains a date keyword
	DateHeader      string
	Headers         []HeaderReport
	Coverage        []MediaCoverage // first-discovered order
	UnknownSuffixes []SuffixCount   // count desc, then suffix asc
}

// HasDateColumn reports whether a date column was found.
func (r *Report) HasDateColumn() bool {
	return r.DateColumn >= 0
}

// Convertible reports whether the header row would convert without error.
func (r *Report) Convertible() bool {
	return r.HasDateColumn() && len(r.Coverage) > 0
}

// Ignored returns the reports for columns that would be dropped.
func (r *Report) Ignored() []HeaderReport {
	var ignored []HeaderReport
	for _, h := range r.Headers {
		if h.Role == RoleIgnored {
			ignored = append(ignored, h)
		}
	}
	return ignored
}

// Inspect classifies every header the same way a conversion would, without
// failing when the date column or media are missing.
func Inspect(headers []string, vocab *vocabulary.Vocabulary) *Report {
	report := &Report{
		DateColumn: -1,
		Headers:    make([]HeaderReport, 0, len(headers)),
	}

	for i, h := range headers {
		if classifier.IsDateHeader(h, vocab) {
			report.DateColumn = i
			report.DateHeader = h
			break
		}
	}

	coverage := make(map[string]map[vocabulary.MetricID]bool)
	var mediaOrder []string
	suffixes := make(map[string]*SuffixCount)

	for i, h := range headers {
		if i == report.DateColumn {
			report.Headers = append(report.Headers, HeaderReport{Column: i, Header: h, Role: RoleDate})
			continue
		}

		c := classifier.Classify(h, vocab)
		if c.IsUnclassified() {
			report.Headers = append(report.Headers, HeaderReport{
				Column: i,
				Header: h,
				Role:   RoleIgnored,
				Reason: c.Reason,
			})
			if suffix, ok := ExtractSuffix(normalizer.NormalizeHeader(h)); ok {
				if sc, seen := suffixes[suffix]; seen {
					sc.Count++
				} else {
					suffixes[suffix] = &SuffixCount{Suffix: suffix, Count: 1, Example: h}
				}
			}
			continue
		}

		report.Headers = append(report.Headers, HeaderReport{
			Column: i,
			Header: h,
			Role:   RoleMetric,
			Media:  c.Media,
			Metric: c.Metric,
			Token:  c.Token,
		})
		if _, ok := coverage[c.Media]; !ok {
			coverage[c.Media] = make(map[vocabulary.MetricID]bool)
			mediaOrder = append(mediaOrder, c.Media)
		}
		coverage[c.Media][c.Metric] = true
	}

	for _, media := range mediaOrder {
		mc := MediaCoverage{Media: media}
		for _, m := range vocab.Targets() {
			if coverage[media][m.ID] {
				mc.Metrics = append(mc.Metrics, m.ID)
			} else {
				mc.Missing = append(mc.Missing, m.ID)
			}
		}
		report.Coverage = append(report.Coverage, mc)
	}

	report.UnknownSuffixes = make([]SuffixCount, 0, len(suffixes))
	for _, sc := range suffixes {
		report.UnknownSuffixes = append(report.UnknownSuffixes, *sc)
	}
	sort.Slice(report.UnknownSuffixes, func(i, j int) bool {
		a, b := report.UnknownSuffixes[i], report.UnknownSuffixes[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Suffix < b.Suffix
	})

	return report
}
