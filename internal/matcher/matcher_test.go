package matcher

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// genLowerWord generates non-empty lowercase words.
func genLowerWord() gopter.Gen {
	return gen.SliceOf(gen.AlphaLowerChar()).
		SuchThat(func(chars []rune) bool { return len(chars) > 0 }).
		Map(func(chars []rune) string { return string(chars) })
}

func mustVocabulary(t *testing.T, mapping map[string]vocabulary.MetricID) *vocabulary.Vocabulary {
	t.Helper()
	targets := []vocabulary.Metric{
		{ID: "short", Label: "Short"},
		{ID: "long", Label: "Long"},
	}
	v, err := vocabulary.New(targets, mapping, nil)
	if err != nil {
		t.Fatalf("vocabulary.New: %v", err)
	}
	return v
}

func TestMatchSuffix(t *testing.T) {
	vocab := vocabulary.Default()

	tests := []struct {
		name      string
		header    string
		matched   bool
		token     string
		metric    vocabulary.MetricID
		remainder string
	}{
		{"simple", "fb_spend", true, "spend", vocabulary.Spend, "fb"},
		{"media with underscores", "fb_awn_ttl_spend", true, "spend", vocabulary.Spend, "fb_awn_ttl"},
		{"synonym", "yt_cost", true, "cost", vocabulary.Spend, "yt"},
		{"long token", "fb_impressions", true, "impressions", vocabulary.Impressions, "fb"},
		{"short token", "fb_imp", true, "imp", vocabulary.Impressions, "fb"},
		{"token without delimiter", "spend", false, "", "", ""},
		{"token glued to media", "fbspend", false, "", "", ""},
		{"token not at end", "fb_spend_total", false, "", "", ""},
		{"bare delimiter", "_spend", true, "spend", vocabulary.Spend, ""},
		{"empty", "", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchSuffix(tt.header, vocab)
			if result.Matched != tt.matched {
				t.Fatalf("MatchSuffix(%q).Matched = %v, want %v", tt.header, result.Matched, tt.matched)
			}
			if !tt.matched {
				return
			}
			if result.Token != tt.token {
				t.Errorf("token = %q, want %q", result.Token, tt.token)
			}
			if result.Metric != tt.metric {
				t.Errorf("metric = %q, want %q", result.Metric, tt.metric)
			}
			if result.Remainder != tt.remainder {
				t.Errorf("remainder = %q, want %q", result.Remainder, tt.remainder)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := map[string]string{
		"fb_spend":     "spend",
		"fb_awn_total": "total",
		"week":         "",
		"trailing_":    "",
	}
	for in, want := range tests {
		if got := LastSegment(in); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLongestSuffixWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("the longest token ending the header is selected", prop.ForAll(
		func(media, qualifier, base string) bool {
			long := qualifier + "_" + base
			vocab := mustVocabulary(t, map[string]vocabulary.MetricID{
				base: "short",
				long: "long",
			})

			header := media + "_" + long
			result := MatchSuffix(header, vocab)

			if !result.Matched {
				t.Logf("expected %q to match", header)
				return false
			}
			if result.Token != long || result.Metric != "long" {
				t.Logf("header %q: expected token %q, got %q", header, long, result.Token)
				return false
			}
			if result.Remainder != media {
				t.Logf("header %q: expected remainder %q, got %q", header, media, result.Remainder)
				return false
			}
			return true
		},
		genLowerWord(),
		genLowerWord(),
		genLowerWord(),
	))

	properties.TestingRun(t)
}

func TestSuffixExtraction(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	vocab := vocabulary.Default()
	tokens := vocab.Tokens()

	properties := gopter.NewProperties(parameters)

	properties.Property("a header ending in _<token> yields that token's metric", prop.ForAll(
		func(media string, tokenIdx int) bool {
			token := tokens[tokenIdx]
			header := media + "_" + token
			result := MatchSuffix(header, vocab)
			if !result.Matched {
				t.Logf("expected %q to match", header)
				return false
			}

			want, _ := vocab.Lookup(token)
			if result.Metric != want {
				t.Logf("header %q: expected metric %q, got %q", header, want, result.Metric)
				return false
			}
			if result.Remainder != media {
				t.Logf("header %q: expected remainder %q, got %q", header, media, result.Remainder)
				return false
			}
			return true
		},
		genLowerWord(),
		gen.IntRange(0, len(tokens)-1),
	))

	properties.TestingRun(t)
}
