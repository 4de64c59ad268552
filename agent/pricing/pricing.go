// Package pricing turns audience metrics into a tiered CPM price breakdown.
//
// The engine is a pure function: identical metrics always produce identical
// breakdowns, and there is no failure path. Callers are responsible for
// handing in valid, non-negative numeric fields.
package pricing

import (
	"math"
	"strings"

	"github.com/ManagementMO/dreamwell-assessment/agent/enrichment"
)

// Breakdown is the full derivation of a sponsorship price. FinalCPM is the
// product of the base CPM and the three multipliers; TotalPrice is
// avg views per thousand times that product. Both are rounded to 2dp for
// output, but TotalPrice derives from the unrounded product so the rounding
// of FinalCPM never leaks into the total. Never mutated after creation.
type Breakdown struct {
	BaseCPM         float64 `json:"base_cpm"`
	EngagementMult  float64 `json:"engagement_multiplier"`
	NicheMult       float64 `json:"niche_multiplier"`
	ConsistencyMult float64 `json:"consistency_multiplier"`
	FinalCPM        float64 `json:"final_cpm"`
	TotalPrice      float64 `json:"total_price"`
	Currency        string  `json:"currency"`
}

// Price computes the fair sponsorship price for the given channel metrics.
func Price(m enrichment.ChannelMetrics) Breakdown {
	base := BaseCPM(m.Subscribers)
	eng := EngagementMultiplier(m.EngagementRate)
	niche := NicheMultiplier(m.Niche)
	cons := ConsistencyMultiplier(m.Consistency)

	product := base * eng * niche * cons

	return Breakdown{
		BaseCPM:         base,
		EngagementMult:  eng,
		NicheMult:       niche,
		ConsistencyMult: cons,
		FinalCPM:        round2(product),
		TotalPrice:      round2(m.AvgViews / 1000 * product),
		Currency:        "USD",
	}
}

// BaseCPM maps a subscriber count onto its tier. Tiers are half-open
// intervals: a count sitting exactly on a boundary belongs to the upper band.
// Channels under 1K have no tier of their own and get the micro floor.
func BaseCPM(subscribers int64) float64 {
	switch {
	case subscribers < 10_000:
		return 12.50 // micro floor
	case subscribers < 50_000:
		return 17.50
	case subscribers < 100_000:
		return 20.00
	case subscribers < 500_000:
		return 27.50
	case subscribers < 1_000_000:
		return 50.00
	default:
		return 70.00
	}
}

// EngagementMultiplier classifies an interactions-per-view rate. Boundary
// values belong to the upper band: exactly 0.15 is 1.3, not 1.0.
func EngagementMultiplier(rate float64) float64 {
	switch {
	case rate < 0.05:
		return 0.7
	case rate < 0.15:
		return 1.0
	case rate < 0.30:
		return 1.3
	default:
		return 1.5
	}
}

// nicheTable maps niche keywords to multipliers, checked in order so the
// highest-value match wins for mixed labels like "tech & finance".
var nicheTable = []struct {
	keywords []string
	mult     float64
}{
	{[]string{"finance", "money", "invest"}, 1.4},
	{[]string{"tech", "ai", "software"}, 1.2},
	{[]string{"business", "entrepreneur"}, 1.2},
	{[]string{"marketing"}, 1.1},
	{[]string{"lifestyle"}, 1.0},
	{[]string{"gaming", "game"}, 0.9},
}

// NicheMultiplier matches the declared or inferred content category against a
// fixed table; unmatched categories default to 1.0.
func NicheMultiplier(niche string) float64 {
	n := strings.ToLower(niche)
	for _, entry := range nicheTable {
		for _, kw := range entry.keywords {
			if strings.Contains(n, kw) {
				return entry.mult
			}
		}
	}
	return 1.0
}

// ConsistencyMultiplier rates upload regularity. Unknown classifications are
// treated as medium.
func ConsistencyMultiplier(score string) float64 {
	switch strings.ToLower(score) {
	case "high":
		return 1.1
	case "low":
		return 0.9
	default:
		return 1.0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
