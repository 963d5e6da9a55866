package analytics

import "math"

// computeDistribution returns the positive/negative/neutral percentage split
// over non-meta messages in the filtered set, rounded to 2 decimals. All
// zero when there are no classifiable (non-meta) messages.
func computeDistribution(filtered []scoredMessage) SentimentDistribution {
	var positive, negative, neutral, total int
	for _, m := range filtered {
		switch m.label {
		case labelMeta:
			continue
		case labelPositive:
			positive++
		case labelNegative:
			negative++
		default:
			neutral++
		}
		total++
	}

	if total == 0 {
		return SentimentDistribution{}
	}

	return SentimentDistribution{
		Positive: round2(100 * float64(positive) / float64(total)),
		Negative: round2(100 * float64(negative) / float64(total)),
		Neutral:  round2(100 * float64(neutral) / float64(total)),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
