package store

import (
	"database/sql"
	"fmt"

	"github.com/healixhq/healix/internal/model"
)

type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

func scanPlan(scanner interface{ Scan(...any) error }) (*model.DailyPlan, error) {
	var p model.DailyPlan
	err := scanner.Scan(&p.ID, &p.ProfileID, &p.PlanDate, &p.Content, &p.Model, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const planCols = `id, profile_id, plan_date, content, model, created_at`

// Create inserts a plan for (profile, date). The table's unique constraint is
// the idempotency guard under concurrent generation; a violation surfaces as
// ErrDuplicatePlan so callers can re-read the winner.
func (s *PlanStore) Create(profileID, planDate, content, modelName string) (*model.DailyPlan, error) {
	result, err := s.db.Exec(
		`INSERT INTO daily_plans (profile_id, plan_date, content, model) VALUES (?, ?, ?, ?)`,
		profileID, planDate, content, modelName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePlan
		}
		return nil, fmt.Errorf("insert daily plan: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getByID(id)
}

func (s *PlanStore) getByID(id int64) (*model.DailyPlan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM daily_plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily plan: %w", err)
	}
	return p, nil
}

func (s *PlanStore) GetByProfileAndDate(profileID, planDate string) (*model.DailyPlan, error) {
	row := s.db.QueryRow(
		`SELECT `+planCols+` FROM daily_plans WHERE profile_id = ? AND plan_date = ?`,
		profileID, planDate,
	)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily plan by date: %w", err)
	}
	return p, nil
}
