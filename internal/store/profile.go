package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/healixhq/healix/internal/model"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(scanner interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var managerID sql.NullString
	var endDate sql.NullTime
	var locked int
	err := scanner.Scan(
		&p.ID, &managerID, &p.Name, &p.AvatarURL,
		&p.HeightCm, &p.WeightKg, &p.BirthDate, &p.Gender,
		&p.SubscriptionStatus, &endDate, &p.PlanTier, &locked,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if managerID.Valid {
		p.ManagerID = &managerID.String
	}
	if endDate.Valid {
		t := endDate.Time
		p.SubscriptionEndDate = &t
	}
	p.IsLocked = locked != 0
	return &p, nil
}

const profileCols = `id, manager_id, name, avatar_url, height_cm, weight_kg, birth_date, gender, subscription_status, subscription_end_date, plan_tier, is_locked, created_at, updated_at`

// CreateManager inserts a primary profile whose ID is the auth subject's ID.
func (s *ProfileStore) CreateManager(id, name string) (*model.Profile, error) {
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, manager_id, name) VALUES (?, NULL, ?)`,
		id, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert manager profile: %w", err)
	}
	return s.GetByID(id)
}

// CreateDependent inserts a dependent profile with an independently generated ID.
func (s *ProfileStore) CreateDependent(managerID, name string) (*model.Profile, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, manager_id, name) VALUES (?, ?, ?)`,
		id, managerID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert dependent profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) GetByID(id string) (*model.Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// ListFamily returns the family group for an identity: the profile with that
// ID plus every profile managed by it. The manager sorts first.
func (s *ProfileStore) ListFamily(identity string) ([]model.Profile, error) {
	rows, err := s.db.Query(
		`SELECT `+profileCols+` FROM profiles
		 WHERE id = ? OR manager_id = ?
		 ORDER BY manager_id IS NOT NULL, created_at`,
		identity, identity,
	)
	if err != nil {
		return nil, fmt.Errorf("query family: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (s *ProfileStore) CountDependents(managerID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM profiles WHERE manager_id = ? AND is_locked = 0`,
		managerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count dependents: %w", err)
	}
	return count, nil
}

func (s *ProfileStore) UpdateDetails(id, name, gender, birthDate string, heightCm, weightKg float64) (*model.Profile, error) {
	_, err := s.db.Exec(
		`UPDATE profiles SET name = ?, gender = ?, birth_date = ?, height_cm = ?, weight_kg = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, gender, birthDate, heightCm, weightKg, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProfileStore) UpdateAvatarURL(id, url string) error {
	_, err := s.db.Exec(
		`UPDATE profiles SET avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		url, id,
	)
	if err != nil {
		return fmt.Errorf("update avatar url: %w", err)
	}
	return nil
}

// UpdateSubscription writes the authoritative subscription fields. Callers
// only invoke this on primary profiles; dependents inherit at read time.
func (s *ProfileStore) UpdateSubscription(id string, status model.SubscriptionStatus, tier model.PlanTier, endDate *time.Time) error {
	var nt sql.NullTime
	if endDate != nil {
		nt = sql.NullTime{Time: *endDate, Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE profiles SET subscription_status = ?, plan_tier = ?, subscription_end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, tier, nt, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (s *ProfileStore) SetLocked(id string, locked bool) error {
	var v int
	if locked {
		v = 1
	}
	_, err := s.db.Exec(
		`UPDATE profiles SET is_locked = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		v, id,
	)
	if err != nil {
		return fmt.Errorf("set locked: %w", err)
	}
	return nil
}

func (s *ProfileStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
