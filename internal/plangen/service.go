package plangen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

// Generator produces a plan for a profile and date. Satisfied by *Client;
// tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, profile *model.Profile, date string) (*PlanData, error)
}

// Service is a read-through cache over daily plans: generate if absent,
// idempotent by the (profile, date) natural key. The daily_plans unique
// constraint is the concurrency guard; a duplicate insert from a concurrent
// trigger is resolved by re-reading the winning row.
type Service struct {
	generator Generator
	modelName string
	plans     *store.PlanStore
	logger    *slog.Logger
}

func NewService(generator Generator, modelName string, plans *store.PlanStore, logger *slog.Logger) *Service {
	return &Service{
		generator: generator,
		modelName: modelName,
		plans:     plans,
		logger:    logger,
	}
}

// GetOrGenerate returns the cached plan for (profile, date), generating and
// storing it on a miss.
func (s *Service) GetOrGenerate(ctx context.Context, profile *model.Profile, date string) (*model.DailyPlan, error) {
	existing, err := s.plans.GetByProfileAndDate(profile.ID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	plan, err := s.generator.Generate(ctx, profile, date)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	content, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	created, err := s.plans.Create(profile.ID, date, string(content), s.modelName)
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePlan) {
			// A concurrent generation won the insert; its plan is the one.
			s.logger.Debug("concurrent plan generation, using stored plan", "profile_id", profile.ID, "date", date)
			return s.plans.GetByProfileAndDate(profile.ID, date)
		}
		return nil, err
	}
	return created, nil
}
