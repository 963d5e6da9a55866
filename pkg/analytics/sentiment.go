package analytics

import "strings"

// Lexicons, exact sets (matched after normalizeWord).
var (
	positiveLexicon = map[string]bool{
		"adorei": true, "gostei": true, "bom": true, "boa": true,
		"excelente": true, "otimo": true,
	}
	negativeLexicon = map[string]bool{
		"ruim": true, "terrivel": true, "pessimo": true, "horrivel": true,
		"lento": true,
	}
	intensifierLexicon = map[string]bool{
		"muito": true, "super": true,
	}
	negationLexicon = map[string]bool{
		"nao": true,
	}
)

// isEmployeeUserID reports whether a user id's normalized form contains
// "mbras" — the employee marker used by sentiment scoring and influence.
func isEmployeeUserID(userID string) bool {
	return strings.Contains(normalizeWord(userID), "mbras")
}

// analyzeSentiment scores a single message's sentiment per spec §4.1.
func analyzeSentiment(content string, isEmployee bool) (sentimentLabel, float64) {
	wholeNorm := normalizeWhole(content)
	if isMetaPhrase(wholeNorm) {
		return labelMeta, 0
	}

	rawTokens := tokenize(content)
	var words []string
	for _, tok := range rawTokens {
		if isHashtag(tok) {
			continue
		}
		words = append(words, normalizeWord(tok))
	}
	if len(words) == 0 {
		return labelNeutral, 0
	}

	// Negation marks: a parallel counter, incremented for the 3 tokens
	// following each negation token (or until the end of the list).
	negMarks := make([]int, len(words))
	for i, w := range words {
		if negationLexicon[w] {
			for j := i + 1; j <= i+3 && j < len(words); j++ {
				negMarks[j]++
			}
		}
	}

	var scoreSum float64
	var polarCount int
	pendingIntensifier := false

	for i, w := range words {
		if intensifierLexicon[w] {
			pendingIntensifier = true
			continue
		}

		var base float64
		switch {
		case positiveLexicon[w]:
			base = 1
		case negativeLexicon[w]:
			base = -1
		default:
			continue
		}

		if pendingIntensifier {
			base *= 1.5
			pendingIntensifier = false
		}
		if negMarks[i]%2 != 0 {
			base *= -1
		}
		if isEmployee && base > 0 {
			base *= 2.0
		}

		scoreSum += base
		polarCount++
	}

	if polarCount == 0 {
		return labelNeutral, 0
	}

	score := scoreSum / float64(polarCount)
	switch {
	case score > 0.1:
		return labelPositive, score
	case score < -0.1:
		return labelNegative, score
	default:
		return labelNeutral, score
	}
}
