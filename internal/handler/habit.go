package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

type HabitHandler struct {
	resolver *family.Resolver
	habits   *store.HabitStore
	logger   *slog.Logger
}

func NewHabitHandler(resolver *family.Resolver, habits *store.HabitStore, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{
		resolver: resolver,
		habits:   habits,
		logger:   logger,
	}
}

// Record sets a habit completion flag for today. Last write wins.
func (h *HabitHandler) Record(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.member(w, r)
	if !ok {
		return
	}

	var req struct {
		Habit string `json:"habit"`
		Done  bool   `json:"done"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Habit = strings.TrimSpace(req.Habit)
	if req.Habit == "" {
		writeError(w, http.StatusBadRequest, "habit is required")
		return
	}

	entry, err := h.habits.Upsert(profile.ID, time.Now().Format("2006-01-02"), req.Habit, req.Done)
	if err != nil {
		h.logger.Error("record habit", "profile_id", profile.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record habit")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Today lists a member's habit entries for the current date.
func (h *HabitHandler) Today(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.member(w, r)
	if !ok {
		return
	}

	entries, err := h.habits.ListByDate(profile.ID, time.Now().Format("2006-01-02"))
	if err != nil {
		h.logger.Error("list habits", "profile_id", profile.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if entries == nil {
		entries = []model.HabitEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HabitHandler) member(w http.ResponseWriter, r *http.Request) (*model.Profile, bool) {
	group, err := h.resolver.Load(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return nil, false
	}
	profile := group.Member(r.PathValue("id"))
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return nil, false
	}
	if !family.Entitled(profile, time.Now()) {
		writeError(w, http.StatusForbidden, "an active subscription is required for habit tracking")
		return nil, false
	}
	return profile, true
}
