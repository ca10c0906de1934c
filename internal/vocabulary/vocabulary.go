// Package vocabulary holds the metric targets and suffix tokens used to read wide exports.
package vocabulary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/normalizer"
)

// MetricID is the canonical identifier of an output metric column.
type MetricID string

const (
	Spend       MetricID = "spend"
	Impressions MetricID = "imp"
	Clicks      MetricID = "click"
	Views       MetricID = "views"
	GRP         MetricID = "grp"
	Reach       MetricID = "reach"
	Leads       MetricID = "leads"
	TVR         MetricID = "tvr"
)

// Metric pairs a MetricID with the label written in the output header.
type Metric struct {
	ID    MetricID `json:"id" yaml:"id" toml:"id"`
	Label string   `json:"label" yaml:"label" toml:"label"`
}

// VocabularyError describes an invalid vocabulary definition.
type VocabularyError struct {
	Field   string
	Message string
}

func (e *VocabularyError) Error() string {
	return fmt.Sprintf("invalid vocabulary: %s: %s", e.Field, e.Message)
}

// DefaultTargets returns the built-in output metrics in output order.
func DefaultTargets() []Metric {
	return []Metric{
		{ID: Spend, Label: "Spend(TWD)"},
		{ID: Impressions, Label: "Impressions"},
		{ID: Clicks, Label: "Clicks"},
		{ID: Views, Label: "Views"},
		{ID: GRP, Label: "GRP"},
		{ID: Reach, Label: "Reach"},
		{ID: Leads, Label: "Lead"},
		{ID: TVR, Label: "TVR"},
	}
}

// DefaultMapping returns the built-in suffix tokens. Several tokens may share a metric.
func DefaultMapping() map[string]MetricID {
	return map[string]MetricID{
		"spend":       Spend,
		"cost":        Spend,
		"imp":         Impressions,
		"impression":  Impressions,
		"impressions": Impressions,
		"click":       Clicks,
		"clicks":      Clicks,
		"view":        Views,
		"views":       Views,
		"grp":         GRP,
		"reach":       Reach,
		"lead":        Leads,
		"leads":       Leads,
		"tvr":         TVR,
	}
}

// DefaultDateKeywords returns the substrings that mark the date column.
func DefaultDateKeywords() []string {
	return []string{"week", "date", "日期"}
}

// Vocabulary is an immutable set of output targets and suffix tokens.
// It is safe for concurrent use once built.
type Vocabulary struct {
	targets      []Metric
	positions    map[MetricID]int
	mapping      map[string]MetricID
	tokens       []string
	dateKeywords []string
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	v, err := New(DefaultTargets(), DefaultMapping(), DefaultDateKeywords())
	if err != nil {
		panic(err)
	}
	return v
}

// New validates and builds a Vocabulary. Tokens and date keywords are folded the
// same way headers are (see normalizer.NormalizeHeader).
// An empty dateKeywords slice falls back to DefaultDateKeywords.
func New(targets []Metric, mapping map[string]MetricID, dateKeywords []string) (*Vocabulary, error) {
	if len(targets) == 0 {
		return nil, &VocabularyError{Field: "targetMetrics", Message: "must contain at least one metric"}
	}

	v := &Vocabulary{
		targets:   make([]Metric, len(targets)),
		positions: make(map[MetricID]int, len(targets)),
		mapping:   make(map[string]MetricID, len(mapping)),
	}

	for i, m := range targets {
		if m.ID == "" {
			return nil, &VocabularyError{Field: fmt.Sprintf("targetMetrics[%d].id", i), Message: "cannot be empty"}
		}
		if strings.TrimSpace(m.Label) == "" {
			return nil, &VocabularyError{Field: fmt.Sprintf("targetMetrics[%d].label", i), Message: "cannot be empty"}
		}
		if first, exists := v.positions[m.ID]; exists {
			return nil, &VocabularyError{
				Field:   fmt.Sprintf("targetMetrics[%d].id", i),
				Message: fmt.Sprintf("duplicate metric %q (first declared at index %d)", m.ID, first),
			}
		}
		v.positions[m.ID] = i
		v.targets[i] = m
	}

	for raw, id := range mapping {
		token := normalizer.NormalizeHeader(raw)
		if token == "" {
			return nil, &VocabularyError{Field: "metricMapping", Message: "token cannot be empty"}
		}
		if strings.HasPrefix(token, "_") || strings.HasSuffix(token, "_") {
			return nil, &VocabularyError{Field: "metricMapping." + raw, Message: "token cannot start or end with an underscore"}
		}
		if _, ok := v.positions[id]; !ok {
			return nil, &VocabularyError{Field: "metricMapping." + raw, Message: fmt.Sprintf("unknown metric %q", id)}
		}
		if prev, exists := v.mapping[token]; exists && prev != id {
			return nil, &VocabularyError{
				Field:   "metricMapping." + raw,
				Message: fmt.Sprintf("token maps to both %q and %q", prev, id),
			}
		}
		v.mapping[token] = id
	}

	v.tokens = make([]string, 0, len(v.mapping))
	for token := range v.mapping {
		v.tokens = append(v.tokens, token)
	}
	// Longest first so the first suffix hit is the longest one.
	sort.Slice(v.tokens, func(i, j int) bool {
		if len(v.tokens[i]) != len(v.tokens[j]) {
			return len(v.tokens[i]) > len(v.tokens[j])
		}
		return v.tokens[i] < v.tokens[j]
	})

	if len(dateKeywords) == 0 {
		dateKeywords = DefaultDateKeywords()
	}
	for _, kw := range dateKeywords {
		kw = normalizer.NormalizeHeader(kw)
		if kw != "" {
			v.dateKeywords = append(v.dateKeywords, kw)
		}
	}
	if len(v.dateKeywords) == 0 {
		return nil, &VocabularyError{Field: "dateKeywords", Message: "must contain at least one non-blank keyword"}
	}

	return v, nil
}

// Targets returns the output metrics in output order.
func (v *Vocabulary) Targets() []Metric {
	out := make([]Metric, len(v.targets))
	copy(out, v.targets)
	return out
}

// Len returns the number of output metrics.
func (v *Vocabulary) Len() int {
	return len(v.targets)
}

// Position returns the output index of a metric, or -1 if it is not a target.
func (v *Vocabulary) Position(id MetricID) int {
	if pos, ok := v.positions[id]; ok {
		return pos
	}
	return -1
}

// Lookup returns the metric a folded token maps to.
func (v *Vocabulary) Lookup(token string) (MetricID, bool) {
	id, ok := v.mapping[token]
	return id, ok
}

// Tokens returns every token, longest first.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// TokensFor returns the tokens mapping to the given metric, longest first.
func (v *Vocabulary) TokensFor(id MetricID) []string {
	var out []string
	for _, token := range v.tokens {
		if v.mapping[token] == id {
			out = append(out, token)
		}
	}
	return out
}

// DateKeywords returns the folded substrings that identify the date column.
func (v *Vocabulary) DateKeywords() []string {
	out := make([]string, len(v.dateKeywords))
	copy(out, v.dateKeywords)
	return out
}

// Header returns the output header row: Date, Media, then every target label.
func (v *Vocabulary) Header() []string {
	header := make([]string, 0, len(v.targets)+2)
	header = append(header, "Date", "Media")
	for _, m := range v.targets {
		header = append(header, m.Label)
	}
	return header
}
