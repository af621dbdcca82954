package family

import (
	"time"

	"github.com/healixhq/healix/internal/model"
)

// Entitled reports whether a resolved profile currently has access to paid
// features. It is a pure function of the profile's lock flag, subscription
// status, end date, and the supplied evaluation time.
//
// This is the single entitlement gate for the whole service. Feature
// handlers, dependent creation, habit tracking, and plan generation all call
// this function rather than re-deriving the check.
func Entitled(p *model.Profile, now time.Time) bool {
	if p.IsLocked {
		return false
	}
	if p.SubscriptionStatus != model.StatusActive {
		return false
	}
	if p.SubscriptionEndDate != nil && !p.SubscriptionEndDate.After(now) {
		return false
	}
	return true
}
