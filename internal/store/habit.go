package store

import (
	"database/sql"
	"fmt"

	"github.com/healixhq/healix/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.HabitEntry, error) {
	var h model.HabitEntry
	var done int
	err := scanner.Scan(&h.ID, &h.ProfileID, &h.EntryDate, &h.Habit, &done, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Done = done != 0
	return &h, nil
}

const habitCols = `id, profile_id, entry_date, habit, done, created_at, updated_at`

// Upsert records a habit completion flag for (profile, date, habit).
func (s *HabitStore) Upsert(profileID, entryDate, habit string, done bool) (*model.HabitEntry, error) {
	var v int
	if done {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO habit_entries (profile_id, entry_date, habit, done) VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id, entry_date, habit)
		 DO UPDATE SET done = excluded.done, updated_at = CURRENT_TIMESTAMP`,
		profileID, entryDate, habit, v,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert habit entry: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+habitCols+` FROM habit_entries WHERE profile_id = ? AND entry_date = ? AND habit = ?`,
		profileID, entryDate, habit,
	)
	h, err := scanHabit(row)
	if err != nil {
		return nil, fmt.Errorf("get habit entry: %w", err)
	}
	return h, nil
}

// ListByDate returns all entries for a profile on a given date.
func (s *HabitStore) ListByDate(profileID, entryDate string) ([]model.HabitEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habit_entries WHERE profile_id = ? AND entry_date = ? ORDER BY habit`,
		profileID, entryDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query habit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.HabitEntry
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit entry: %w", err)
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}
