package model

import "time"

// SubscriptionStatus is the lifecycle state of a primary account's subscription.
// Dependent rows carry a copy but it is never authoritative; see family.Resolver.
type SubscriptionStatus string

const (
	StatusNew     SubscriptionStatus = "new"
	StatusActive  SubscriptionStatus = "active"
	StatusExpired SubscriptionStatus = "expired"
)

// PlanTier identifies the paid plan. Pricing is base + per-member; see
// the subscription package.
type PlanTier string

const (
	TierStandard PlanTier = "standard"
	TierPro      PlanTier = "pro"
)

// Valid reports whether t is a known tier.
func (t PlanTier) Valid() bool {
	return t == TierStandard || t == TierPro
}

type Profile struct {
	ID                  string             `json:"id"`
	ManagerID           *string            `json:"manager_id"`
	Name                string             `json:"name"`
	AvatarURL           string             `json:"avatar_url"`
	HeightCm            float64            `json:"height_cm"`
	WeightKg            float64            `json:"weight_kg"`
	BirthDate           string             `json:"birth_date"`
	Gender              string             `json:"gender"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status"`
	SubscriptionEndDate *time.Time         `json:"subscription_end_date"`
	PlanTier            PlanTier           `json:"plan_tier"`
	IsLocked            bool               `json:"is_locked"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// IsManager reports whether the profile is a primary (manager) account.
func (p *Profile) IsManager() bool {
	return p.ManagerID == nil
}
