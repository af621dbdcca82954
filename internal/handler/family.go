package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/storage"
	"github.com/healixhq/healix/internal/store"
	ws "github.com/healixhq/healix/internal/websocket"
)

const maxAvatarSize = 5 << 20 // 5MB

// memberView is a resolved profile plus its evaluated entitlement.
type memberView struct {
	model.Profile
	Entitled bool `json:"entitled"`
}

type familyView struct {
	Manager    *memberView  `json:"manager"`
	Dependents []memberView `json:"dependents"`
}

type FamilyHandler struct {
	resolver *family.Resolver
	profiles *store.ProfileStore
	requests *store.PaymentRequestStore
	objects  *storage.Store
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(
	resolver *family.Resolver,
	profiles *store.ProfileStore,
	requests *store.PaymentRequestStore,
	objects *storage.Store,
	hub *ws.Hub,
	logger *slog.Logger,
) *FamilyHandler {
	return &FamilyHandler{
		resolver: resolver,
		profiles: profiles,
		requests: requests,
		objects:  objects,
		hub:      hub,
		logger:   logger,
	}
}

// Get returns the caller's resolved family group with entitlement evaluated
// per member. An identity with no profiles yet gets an empty group, not an
// error.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.resolver.Load(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}

	now := time.Now()
	view := familyView{Dependents: []memberView{}}
	if group.Manager != nil {
		view.Manager = &memberView{Profile: *group.Manager, Entitled: family.Entitled(group.Manager, now)}
	}
	for _, d := range group.Dependents {
		view.Dependents = append(view.Dependents, memberView{Profile: d, Entitled: family.Entitled(&d, now)})
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateDependent adds a family member. The manager must be entitled, and
// the family must have a free dependent slot on its approved plan.
func (h *FamilyHandler) CreateDependent(w http.ResponseWriter, r *http.Request) {
	identity := auth.UserID(r.Context())

	group, err := h.resolver.Load(identity)
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}
	if group.Manager == nil {
		writeError(w, http.StatusNotFound, "no primary profile found")
		return
	}
	if !family.Entitled(group.Manager, time.Now()) {
		writeError(w, http.StatusForbidden, "an active subscription is required to add family members")
		return
	}

	approved, err := h.requests.LatestApprovedByRequester(group.Manager.ID)
	if err != nil {
		h.logger.Error("load approved request", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check member capacity")
		return
	}
	if approved != nil && len(group.ActiveDependents()) >= approved.Renewal.SubCount {
		writeError(w, http.StatusConflict, "your plan's member capacity is full")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	dep, err := h.profiles.CreateDependent(group.Manager.ID, req.Name)
	if err != nil {
		h.logger.Error("create dependent", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family member")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "created", 0, map[string]any{"profile_id": dep.ID}))
	writeJSON(w, http.StatusCreated, dep)
}

// Update edits a family member's details. The target must belong to the
// caller's family.
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	target := h.familyMember(w, r)
	if target == nil {
		return
	}

	var req struct {
		Name      string  `json:"name"`
		Gender    string  `json:"gender"`
		BirthDate string  `json:"birth_date"`
		HeightCm  float64 `json:"height_cm"`
		WeightKg  float64 `json:"weight_kg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = target.Name
	}

	updated, err := h.profiles.UpdateDetails(target.ID, req.Name, req.Gender, req.BirthDate, req.HeightCm, req.WeightKg)
	if err != nil {
		h.logger.Error("update profile", "profile_id", target.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "updated", 0, map[string]any{"profile_id": target.ID}))
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a dependent. The primary profile cannot be deleted here.
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	target := h.familyMember(w, r)
	if target == nil {
		return
	}
	if target.IsManager() {
		writeError(w, http.StatusBadRequest, "the primary profile cannot be deleted")
		return
	}

	if err := h.profiles.Delete(target.ID); err != nil {
		h.logger.Error("delete profile", "profile_id", target.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete profile")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "deleted", 0, map[string]any{"profile_id": target.ID}))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UploadAvatar stores an avatar image and records its public URL.
func (h *FamilyHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	target := h.familyMember(w, r)
	if target == nil {
		return
	}
	if !h.objects.Configured() {
		writeError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	key := "avatars/" + target.ID + strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.objects.Upload(r.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("upload avatar", "profile_id", target.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload avatar")
		return
	}

	if err := h.profiles.UpdateAvatarURL(target.ID, url); err != nil {
		h.logger.Error("save avatar url", "profile_id", target.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}

	h.hub.Broadcast(ws.NewMessage("profile", "updated", 0, map[string]any{"profile_id": target.ID}))
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

// familyMember resolves the {id} path parameter within the caller's family.
// It writes the error response and returns nil when the profile is missing
// or belongs to another family.
func (h *FamilyHandler) familyMember(w http.ResponseWriter, r *http.Request) *model.Profile {
	group, err := h.resolver.Load(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("load family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return nil
	}
	p := group.Member(r.PathValue("id"))
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return nil
	}
	return p
}
