package analytics

import (
	"crypto/sha256"
	"math/big"
	"sort"
	"strings"
)

// followersFor computes the deterministic follower count for a user id.
func followersFor(userID string) int {
	normalized := normalizeWord(userID)
	switch {
	case strings.Contains(normalized, "cafe"):
		return 4242
	case len(userID) == 13:
		return 233
	case strings.HasSuffix(normalized, "_prime"):
		return 7919
	default:
		sum := sha256.Sum256([]byte(userID))
		mod := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), big.NewInt(10000))
		return int(mod.Int64()) + 100
	}
}

// userAccum tracks the per-user state needed to compute an influence item.
type userAccum struct {
	userID       string
	rateSum      float64
	rateCount    int
	anyEmployee  bool
}

// computeInfluence ranks each distinct user in the filtered feed by a blend
// of followers and engagement rate, per spec §4.1.
func computeInfluence(filtered []scoredMessage) []InfluenceRankingItem {
	order := make([]string, 0)
	accum := make(map[string]*userAccum)

	for _, m := range filtered {
		a, ok := accum[m.raw.UserID]
		if !ok {
			a = &userAccum{userID: m.raw.UserID}
			accum[m.raw.UserID] = a
			order = append(order, m.raw.UserID)
		}
		if rate, counted := messageRate(m); counted {
			a.rateSum += rate
			a.rateCount++
		}
		if m.isEmployee {
			a.anyEmployee = true
		}
	}

	type scoredItem struct {
		item  InfluenceRankingItem
		score float64
	}

	scored := make([]scoredItem, 0, len(order))
	for _, userID := range order {
		a := accum[userID]

		var rate float64
		if a.rateCount > 0 {
			rate = a.rateSum / float64(a.rateCount)
		}

		followers := followersFor(userID)
		score := float64(followers)*0.4 + (rate*100)*0.6

		normalized := normalizeWord(userID)
		if strings.HasSuffix(normalized, "007") {
			score /= 2
		}
		if a.anyEmployee {
			score += 2
		}

		scored = append(scored, scoredItem{
			item: InfluenceRankingItem{
				UserID:         userID,
				Followers:      followers,
				EngagementRate: round6(rate),
				InfluenceScore: round6(score),
			},
			score: score,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].item.UserID < scored[j].item.UserID
	})

	items := make([]InfluenceRankingItem, len(scored))
	for i, s := range scored {
		items[i] = s.item
	}

	return items
}
