// Package classifier decides which media and metric a wide-export column holds.
package classifier

import (
	"strings"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/matcher"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/normalizer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// UnclassifiedReason represents why a header could not be classified.
type UnclassifiedReason string

const (
	EmptyHeader    UnclassifiedReason = "EMPTY_HEADER"
	NoMetricSuffix UnclassifiedReason = "NO_METRIC_SUFFIX"
)

// ClassificationType is either Classified or Unclassified.
type ClassificationType string

const (
	Classified   ClassificationType = "CLASSIFIED"
	Unclassified ClassificationType = "UNCLASSIFIED"
)

// Classification represents the result of classifying one header.
// It is either Classified (with media and metric) or Unclassified (with reason).
type Classification struct {
	Type   ClassificationType
	Header string // folded header text
	Media  string
	Metric vocabulary.MetricID
	Token  string
	Reason UnclassifiedReason

	// EmptyMedia is set when the header was only "_<token>"; the column is
	// still classified, under a media group with an empty name.
	EmptyMedia bool
}

// Classify determines the media and metric encoded in a header title.
// Headers are compared case-insensitively and must end in "_<token>" for a
// vocabulary token; the media is whatever precedes that suffix, with outer
// underscores trimmed.
func Classify(header string, vocab *vocabulary.Vocabulary) *Classification {
	folded := normalizer.NormalizeHeader(header)
	if folded == "" {
		return &Classification{
			Type:   Unclassified,
			Reason: EmptyHeader,
		}
	}

	matchResult := matcher.MatchSuffix(folded, vocab)
	if !matchResult.Matched {
		return &Classification{
			Type:   Unclassified,
			Header: folded,
			Reason: NoMetricSuffix,
		}
	}

	media := strings.Trim(matchResult.Remainder, matcher.Delimiter)

	return &Classification{
		Type:       Classified,
		Header:     folded,
		Media:      media,
		Metric:     matchResult.Metric,
		Token:      matchResult.Token,
		EmptyMedia: media == "",
	}
}

// IsDateHeader reports whether a header names the date column, i.e. its
// folded text contains one of the vocabulary's date keywords.
func IsDateHeader(header string, vocab *vocabulary.Vocabulary) bool {
	folded := normalizer.NormalizeHeader(header)
	if folded == "" {
		return false
	}
	for _, kw := range vocab.DateKeywords() {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// IsClassified returns true if the classification is Classified.
func (c *Classification) IsClassified() bool {
	return c.Type == Classified
}

// IsUnclassified returns true if the classification is Unclassified.
func (c *Classification) IsUnclassified() bool {
	return c.Type == Unclassified
}
