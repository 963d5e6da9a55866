package analytics

import (
	"strings"
	"unicode/utf8"
)

// computeFlags derives the feed-wide boolean flags from the filtered message set.
func computeFlags(filtered []scoredMessage) Flags {
	var f Flags
	for _, m := range filtered {
		if m.isEmployee {
			f.MbrasEmployee = true
		}
		if utf8.RuneCountInString(m.raw.Content) == 42 && strings.Contains(normalizeWord(m.raw.Content), "mbras") {
			f.SpecialPattern = true
		}
		if isCandidateAwareContent(m.raw.Content) {
			f.CandidateAwareness = true
		}
	}
	return f
}

// isCandidateAwareContent matches the meta phrase exactly, or content that
// mentions all of "teste", "mbras" and "tecnico" as normalized words.
func isCandidateAwareContent(content string) bool {
	if isMetaPhrase(normalizeWhole(content)) {
		return true
	}

	want := map[string]bool{"teste": false, "mbras": false, "tecnico": false}
	for _, tok := range tokenize(content) {
		if isHashtag(tok) {
			continue
		}
		w := normalizeWord(tok)
		if _, ok := want[w]; ok {
			want[w] = true
		}
	}
	for _, found := range want {
		if !found {
			return false
		}
	}
	return true
}
