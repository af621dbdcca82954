package subscription

import "github.com/healixhq/healix/internal/model"

// Pricing is base + per-member. The legacy flat three-tier table
// (individual / family_small / family_large) is superseded and intentionally
// not supported.
var (
	basePrice = map[model.PlanTier]int{
		model.TierStandard: 500,
		model.TierPro:      800,
	}
	perMemberPrice = map[model.PlanTier]int{
		model.TierStandard: 100,
		model.TierPro:      200,
	}
)

// Price returns the subscription amount for a tier and dependent slot count.
func Price(tier model.PlanTier, subCount int) int {
	return basePrice[tier] + subCount*perMemberPrice[tier]
}
