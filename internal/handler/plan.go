package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/plangen"
)

type PlanHandler struct {
	resolver *family.Resolver
	plans    *plangen.Service
	logger   *slog.Logger
}

func NewPlanHandler(resolver *family.Resolver, plans *plangen.Service, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		resolver: resolver,
		plans:    plans,
		logger:   logger,
	}
}

// Today returns (generating on first access) the daily plan for a family
// member. The member must belong to the caller's family and be entitled.
func (h *PlanHandler) Today(w http.ResponseWriter, r *http.Request) {
	group, err := h.resolver.Load(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}
	profile := group.Member(r.PathValue("id"))
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if !family.Entitled(profile, time.Now()) {
		writeError(w, http.StatusForbidden, "an active subscription is required for daily plans")
		return
	}

	date := time.Now().Format("2006-01-02")
	plan, err := h.plans.GetOrGenerate(r.Context(), profile, date)
	if err != nil {
		h.logger.Error("get or generate plan", "profile_id", profile.ID, "error", err)
		writeError(w, http.StatusBadGateway, "plan generation is currently unavailable")
		return
	}

	var content any
	if err := json.Unmarshal([]byte(plan.Content), &content); err != nil {
		content = plan.Content
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile_id": plan.ProfileID,
		"plan_date":  plan.PlanDate,
		"model":      plan.Model,
		"plan":       content,
	})
}
