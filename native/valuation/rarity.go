package valuation

// Rarity tiers ordered from most to least common.
const (
	TierCommon    = "COMMON"
	TierRare      = "RARE"
	TierEpic      = "EPIC"
	TierLegendary = "LEGENDARY"
)

// maxSpecificityLen caps how much of an attribute value contributes to its
// specificity. Longer trait values read as more specific up to 50 characters.
const maxSpecificityLen = 50

// Score computes a [0,100] rarity score as the weighted mean of per-attribute
// specificity. Attributes absent from the weight map fall back to a uniform
// weight; a nil or empty weight map weights every attribute equally.
func Score(attributes map[string]string, weights map[string]float64) float64 {
	if len(attributes) == 0 {
		return 0
	}
	var total, weightSum float64
	for name, value := range attributes {
		weight := 1.0
		if len(weights) > 0 {
			if w, ok := weights[name]; ok && w > 0 {
				weight = w
			}
		}
		total += specificity(value) * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	score := total / weightSum * 100
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func specificity(value string) float64 {
	n := len(value)
	if n > maxSpecificityLen {
		n = maxSpecificityLen
	}
	return float64(n) / maxSpecificityLen
}

// Tier maps a rarity score onto its tier band.
func Tier(score float64) string {
	switch {
	case score >= 80:
		return TierLegendary
	case score >= 60:
		return TierEpic
	case score >= 40:
		return TierRare
	default:
		return TierCommon
	}
}

// tierBand returns the inclusive lower and exclusive upper score bound of a
// tier. LEGENDARY tops out at 100.
func tierBand(tier string) (float64, float64) {
	switch tier {
	case TierLegendary:
		return 80, 100
	case TierEpic:
		return 60, 80
	case TierRare:
		return 40, 60
	default:
		return 0, 40
	}
}
