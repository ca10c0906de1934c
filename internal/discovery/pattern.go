package discovery

import (
	"regexp"
)

// SuffixPattern captures the last underscore-delimited segment of a folded
// header when something precedes it, e.g. "fb_engagements" -> "engagements".
// The segment must start with a letter, so "fb_2024" or "q_1" are not
// treated as metric names.
var SuffixPattern = regexp.MustCompile(`^.*[^_]_+(\pL[\pL\pN]*)$`)

// ExtractSuffix returns the candidate metric suffix of a folded header.
//
// Returns the suffix and true if matched, or "" and false otherwise.
func ExtractSuffix(folded string) (suffix string, matched bool) {
	matches := SuffixPattern.FindStringSubmatch(folded)
	if matches == nil {
		return "", false
	}
	return matches[1], true
}
