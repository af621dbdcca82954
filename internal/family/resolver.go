package family

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

// Group is a resolved family: one manager and its dependents, with the
// dependents' subscription fields already overwritten from the manager.
// Dependent rows in storage carry subscription fields of their own, but they
// are dead data; entitlement decisions must never read them directly.
type Group struct {
	Manager    *model.Profile
	Dependents []model.Profile
}

// Empty reports whether no profiles were found for the identity (a valid
// mid-signup state, not an error).
func (g *Group) Empty() bool {
	return g.Manager == nil && len(g.Dependents) == 0
}

// Size returns the number of profiles in the group.
func (g *Group) Size() int {
	n := len(g.Dependents)
	if g.Manager != nil {
		n++
	}
	return n
}

// Member returns the profile with the given ID, or nil.
func (g *Group) Member(id string) *model.Profile {
	if g.Manager != nil && g.Manager.ID == id {
		return g.Manager
	}
	for i := range g.Dependents {
		if g.Dependents[i].ID == id {
			return &g.Dependents[i]
		}
	}
	return nil
}

// ActiveDependents returns the dependents not excluded by a capacity
// downgrade. This is the count the subscription wizard compares against.
func (g *Group) ActiveDependents() []model.Profile {
	var active []model.Profile
	for _, d := range g.Dependents {
		if !d.IsLocked {
			active = append(active, d)
		}
	}
	return active
}

// EffectiveSubscription resolves a profile's subscription through its manager.
// For a manager it returns the profile's own fields; for a dependent it always
// returns the manager's, regardless of what the dependent row carries.
func EffectiveSubscription(p *model.Profile, g *Group) (model.SubscriptionStatus, *time.Time, model.PlanTier) {
	if !p.IsManager() && g.Manager != nil {
		return g.Manager.SubscriptionStatus, g.Manager.SubscriptionEndDate, g.Manager.PlanTier
	}
	return p.SubscriptionStatus, p.SubscriptionEndDate, p.PlanTier
}

// profileLister is the slice of the profile store the resolver needs.
// Tests substitute a scripted implementation.
type profileLister interface {
	ListFamily(identity string) ([]model.Profile, error)
}

// Resolver loads family groups from the profile store.
type Resolver struct {
	profiles profileLister
	logger   *slog.Logger
}

func NewResolver(profiles *store.ProfileStore, logger *slog.Logger) *Resolver {
	return &Resolver{profiles: profiles, logger: logger}
}

// Load fetches every profile whose ID or manager_id matches the identity and
// applies subscription inheritance. An identity with no profiles yields an
// empty group. A fetched set without a manager is a degraded state: the
// dependents keep their raw fields and a warning is logged.
func (r *Resolver) Load(identity string) (*Group, error) {
	profiles, err := r.profiles.ListFamily(identity)
	if err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}

	group := &Group{}
	for i := range profiles {
		if profiles[i].IsManager() {
			p := profiles[i]
			group.Manager = &p
		} else {
			group.Dependents = append(group.Dependents, profiles[i])
		}
	}

	if group.Manager == nil {
		if len(group.Dependents) > 0 {
			r.logger.Warn("family set has no manager, dependents keep raw subscription fields", "identity", identity)
		}
		return group, nil
	}

	for i := range group.Dependents {
		group.Dependents[i].SubscriptionStatus = group.Manager.SubscriptionStatus
		group.Dependents[i].SubscriptionEndDate = group.Manager.SubscriptionEndDate
		group.Dependents[i].PlanTier = group.Manager.PlanTier
	}

	return group, nil
}
