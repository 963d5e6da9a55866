package analytics

import (
	"math"
	"sort"
)

type topicAccum struct {
	tag               string
	weight            float64
	count             int
	sumSentimentWeight float64
}

// sentimentWeight maps a message's sentiment label to the multiplier used in
// trending-topic weighting.
func sentimentWeight(label sentimentLabel) float64 {
	switch label {
	case labelPositive:
		return 1.2
	case labelNegative:
		return 0.8
	default:
		return 1.0
	}
}

// lengthFactor dampens very long hashtags so they don't dominate trending
// purely by virtue of length.
func lengthFactor(tag string) float64 {
	n := len([]rune(tag))
	if n <= 8 {
		return 1
	}
	return math.Log10(float64(n)) / math.Log10(8)
}

// computeTrending ranks the top 5 hashtags across non-meta messages by
// recency- and sentiment-weighted accumulation, per spec §4.1.
func computeTrending(filtered []scoredMessage) []TrendingTopic {
	now := referenceNow(filtered)
	order := make([]string, 0)
	accum := make(map[string]*topicAccum)

	for _, m := range filtered {
		if m.label == labelMeta {
			continue
		}

		ts := m.ts
		if !m.hasValidTS {
			ts = now
		}
		ageMinutes := now.Sub(ts).Minutes()
		timeWeight := 1 + 1/math.Max(ageMinutes, 0.01)
		sw := sentimentWeight(m.label)

		for _, tok := range tokenize(m.raw.Content) {
			if !isHashtag(tok) {
				continue
			}

			a, ok := accum[tok]
			if !ok {
				a = &topicAccum{tag: tok}
				accum[tok] = a
				order = append(order, tok)
			}

			lf := math.Max(lengthFactor(tok), 1e-4)
			a.weight += timeWeight * sw / lf
			a.count++
			a.sumSentimentWeight += sw
		}
	}

	topics := make([]TrendingTopic, 0, len(order))
	for _, tag := range order {
		a := accum[tag]
		topics = append(topics, TrendingTopic{Tag: a.tag, Weight: a.weight, Count: a.count})
	}

	sort.Slice(topics, func(i, j int) bool {
		ai, aj := accum[topics[i].Tag], accum[topics[j].Tag]
		if ai.weight != aj.weight {
			return ai.weight > aj.weight
		}
		if ai.count != aj.count {
			return ai.count > aj.count
		}
		if ai.sumSentimentWeight != aj.sumSentimentWeight {
			return ai.sumSentimentWeight > aj.sumSentimentWeight
		}
		return ai.tag < aj.tag
	})

	if len(topics) > 5 {
		topics = topics[:5]
	}
	return topics
}
