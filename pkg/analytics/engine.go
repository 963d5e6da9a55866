package analytics

import (
	"time"
)

// Analyze computes the full analysis for a batch of feed messages over the
// given time window. It is pure and deterministic: the same input always
// produces byte-identical output (after JSON round-trip), and it never
// errors — malformed fields are coerced rather than rejected.
func Analyze(messages []FeedMessage, timeWindowMinutes int) Analysis {
	scored := make([]scoredMessage, len(messages))
	for i, m := range messages {
		ts, ok := parseTimestamp(m.Timestamp)
		label, score := analyzeSentiment(m.Content, isEmployeeUserID(m.UserID))
		scored[i] = scoredMessage{
			raw:        m,
			ts:         ts,
			hasValidTS: ok,
			isEmployee: isEmployeeUserID(m.UserID),
			label:      label,
			score:      score,
		}
	}

	filtered := filterByWindow(scored, timeWindowMinutes)

	flags := computeFlags(filtered)
	engagementScore := computeEngagement(filtered, flags.CandidateAwareness)
	anomalyDetected, anomalyType := detectAnomaly(filtered)

	return Analysis{
		SentimentDistribution: computeDistribution(filtered),
		EngagementScore:       engagementScore,
		TrendingTopics:        computeTrending(filtered),
		InfluenceRanking:      computeInfluence(filtered),
		AnomalyDetected:       anomalyDetected,
		AnomalyType:           anomalyType,
		Flags:                 flags,
	}
}

// parseTimestamp accepts RFC3339 with either a "Z" suffix or an explicit
// numeric offset. An unparseable or empty timestamp yields the zero time and
// ok=false; callers coerce rather than fail.
func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// referenceNow picks the "current" instant for window filtering: the
// maximum message timestamp, or wall-clock now if no message carries a
// parseable timestamp.
func referenceNow(scored []scoredMessage) time.Time {
	var max time.Time
	found := false
	for _, s := range scored {
		if !s.hasValidTS {
			continue
		}
		if !found || s.ts.After(max) {
			max = s.ts
			found = true
		}
	}
	if !found {
		return time.Now().UTC()
	}
	return max
}

// filterByWindow keeps messages within [reference_now - window, reference_now + 5s].
// If the result is empty but the input was not, it falls back to the full
// input set — a deliberately reproduced quirk, see SPEC_FULL.md's "Open
// Question resolution".
func filterByWindow(scored []scoredMessage, timeWindowMinutes int) []scoredMessage {
	if len(scored) == 0 {
		return scored
	}

	now := referenceNow(scored)
	start := now.Add(-time.Duration(timeWindowMinutes) * time.Minute)
	end := now.Add(5 * time.Second)

	kept := make([]scoredMessage, 0, len(scored))
	for _, s := range scored {
		ts := s.ts
		if !s.hasValidTS {
			ts = now
		}
		if !ts.Before(start) && !ts.After(end) {
			kept = append(kept, s)
		}
	}

	if len(kept) == 0 {
		return scored
	}
	return kept
}
