package model

import "time"

// DailyPlan is a cached generated plan, unique per (profile, date).
// Content holds the generator's JSON payload verbatim.
type DailyPlan struct {
	ID        int64     `json:"id"`
	ProfileID string    `json:"profile_id"`
	PlanDate  string    `json:"plan_date"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// HabitEntry is a per-profile, per-day habit completion flag.
type HabitEntry struct {
	ID        int64     `json:"id"`
	ProfileID string    `json:"profile_id"`
	EntryDate string    `json:"entry_date"`
	Habit     string    `json:"habit"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
