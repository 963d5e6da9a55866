package analytics

import (
	"sort"
	"time"
)

// detectAnomaly evaluates the three anomaly checks in order and returns the
// first hit, per spec §4.1.
func detectAnomaly(filtered []scoredMessage) (bool, *string) {
	byUser := make(map[string][]scoredMessage)
	order := make([]string, 0)
	for _, m := range filtered {
		if _, ok := byUser[m.raw.UserID]; !ok {
			order = append(order, m.raw.UserID)
		}
		byUser[m.raw.UserID] = append(byUser[m.raw.UserID], m)
	}

	for _, userID := range order {
		if hasBurst(byUser[userID]) {
			t := anomalyTypePtr(AnomalyBurstType)
			return true, t
		}
	}

	for _, userID := range order {
		if hasAlternation(byUser[userID]) {
			t := anomalyTypePtr(AnomalyAlternationType)
			return true, t
		}
	}

	if hasSynchronizedPosting(filtered) {
		t := anomalyTypePtr(AnomalySynchronizedType)
		return true, t
	}

	return false, nil
}

// Anomaly type constants, mirrored from the persisted MessageAnomaly.anomaly_type enum.
const (
	AnomalyBurstType        = "burst"
	AnomalyAlternationType  = "alternation"
	AnomalySynchronizedType = "synchronized_posting"
)

func anomalyTypePtr(s string) *string { return &s }

func timestampsOf(msgs []scoredMessage, fallback time.Time) []time.Time {
	ts := make([]time.Time, len(msgs))
	for i, m := range msgs {
		if m.hasValidTS {
			ts[i] = m.ts
		} else {
			ts[i] = fallback
		}
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	return ts
}

// hasBurst reports whether this user has more than 10 messages within any
// 5-minute sliding window.
func hasBurst(msgs []scoredMessage) bool {
	if len(msgs) <= 10 {
		return false
	}
	now := referenceNow(msgs)
	ts := timestampsOf(msgs, now)

	left := 0
	for right := 0; right < len(ts); right++ {
		for ts[right].Sub(ts[left]) > 5*time.Minute {
			left++
		}
		if right-left+1 > 10 {
			return true
		}
	}
	return false
}

// hasAlternation reports whether this user has at least 10 polar messages
// that strictly alternate positive/negative when sorted by timestamp.
func hasAlternation(msgs []scoredMessage) bool {
	polar := make([]scoredMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.label == labelPositive || m.label == labelNegative {
			polar = append(polar, m)
		}
	}
	if len(polar) < 10 {
		return false
	}

	now := referenceNow(msgs)
	sort.Slice(polar, func(i, j int) bool {
		ti, tj := polar[i].ts, polar[j].ts
		if !polar[i].hasValidTS {
			ti = now
		}
		if !polar[j].hasValidTS {
			tj = now
		}
		return ti.Before(tj)
	})

	for i := 1; i < len(polar); i++ {
		if polar[i].label == polar[i-1].label {
			return false
		}
	}
	return true
}

// hasSynchronizedPosting reports whether the full feed has at least 3
// messages whose timestamps span no more than 2 seconds.
func hasSynchronizedPosting(filtered []scoredMessage) bool {
	if len(filtered) < 3 {
		return false
	}
	now := referenceNow(filtered)
	ts := timestampsOf(filtered, now)

	left := 0
	for right := 0; right < len(ts); right++ {
		for ts[right].Sub(ts[left]) > 2*time.Second {
			left++
		}
		if right-left+1 >= 3 {
			return true
		}
	}
	return false
}
