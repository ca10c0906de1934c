// Package matcher finds the metric suffix token at the end of a header title.
package matcher

import (
	"strings"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// Delimiter separates the media name from the metric token in a header.
const Delimiter = "_"

// MatchResult represents the result of matching a header against the vocabulary tokens.
type MatchResult struct {
	Matched   bool
	Token     string
	Metric    vocabulary.MetricID
	Remainder string // header text before the "_<token>" suffix
}

// MatchSuffix evaluates a folded header against every vocabulary token.
// A token matches when the header ends with "_" + token; when several do,
// the longest token wins so "fb_ad_spend" prefers "ad_spend" over "spend".
func MatchSuffix(folded string, vocab *vocabulary.Vocabulary) *MatchResult {
	// Tokens come back longest first, so the first hit is the longest match.
	for _, token := range vocab.Tokens() {
		suffix := Delimiter + token
		if !strings.HasSuffix(folded, suffix) {
			continue
		}

		metric, _ := vocab.Lookup(token)
		return &MatchResult{
			Matched:   true,
			Token:     token,
			Metric:    metric,
			Remainder: folded[:len(folded)-len(suffix)],
		}
	}

	return &MatchResult{Matched: false}
}

// LastSegment returns the text after the final delimiter, or "" if there is none.
func LastSegment(folded string) string {
	idx := strings.LastIndex(folded, Delimiter)
	if idx == -1 {
		return ""
	}
	return folded[idx+len(Delimiter):]
}
