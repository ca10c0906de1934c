// Package normalizer cleans header titles and metric cells read from wide exports.
package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader returns the comparison form of a header title.
// The title is trimmed, NFKC-normalised so full-width letters and underscores
// compare as their ASCII forms, and case-folded.
//
// A new Caser is created per call because cases.Caser is stateful.
func NormalizeHeader(header string) string {
	cleaned := norm.NFKC.String(strings.TrimSpace(header))
	return strings.TrimSpace(cases.Fold().String(cleaned))
}

// NormalizeValue reads the metric value at col from row.
// A negative col means the metric has no column for this media; it and
// any column past the end of a short row read as zero.
func NormalizeValue(row []string, col int) decimal.Decimal {
	if col < 0 || col >= len(row) {
		return decimal.Zero
	}
	return ParseValue(row[col])
}

// ParseValue converts a raw cell into a number.
// Thousands separators are stripped. Empty or unparseable text is zero;
// this never fails.
func ParseValue(raw string) decimal.Decimal {
	v := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if v == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
