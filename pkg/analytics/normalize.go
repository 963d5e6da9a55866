package analytics

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// tokenPattern matches either a hashtag (# followed by word characters and
// hyphens) or a bare Unicode word. Go's RE2 \w is ASCII-only, so the word
// classes are spelled out explicitly to stay Unicode-aware per the spec.
var tokenPattern = regexp.MustCompile(`#[\p{L}\p{N}_-]+|[\p{L}\p{N}_]+`)

// isHashtag reports whether a token produced by tokenPattern is a hashtag.
func isHashtag(tok string) bool {
	return strings.HasPrefix(tok, "#")
}

// tokenize splits content into hashtag and word tokens, preserving order.
func tokenize(content string) []string {
	return tokenPattern.FindAllString(content, -1)
}

// normalizeWord lowercases, applies Unicode NFKD decomposition, and strips
// combining marks — the normalization used for sentiment-lexicon matching.
func normalizeWord(s string) string {
	s = strings.ToLower(s)
	s = norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var spaceRun = regexp.MustCompile(`\s+`)

// normalizeWhole applies the same lowercase+NFKD+mark-stripping normalization
// as normalizeWord to an entire string, then collapses runs of whitespace to
// a single space and trims the ends. Used for meta-phrase and
// candidate-awareness whole-content matching.
func normalizeWhole(s string) string {
	s = normalizeWord(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// metaPhrases is the exact set of meta phrases (already normalized,
// single-spaced) that short-circuit sentiment to zero.
var metaPhrases = map[string]bool{
	"teste tecnico mbras": true,
}

func isMetaPhrase(normalizedWhole string) bool {
	return metaPhrases[normalizedWhole]
}
