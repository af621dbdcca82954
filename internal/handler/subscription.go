package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/storage"
	"github.com/healixhq/healix/internal/store"
	"github.com/healixhq/healix/internal/subscription"
	ws "github.com/healixhq/healix/internal/websocket"
)

const maxReceiptSize = 10 << 20 // 10MB

type SubscriptionHandler struct {
	resolver *family.Resolver
	requests *store.PaymentRequestStore
	objects  *storage.Store
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewSubscriptionHandler(
	resolver *family.Resolver,
	requests *store.PaymentRequestStore,
	objects *storage.Store,
	hub *ws.Hub,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		resolver: resolver,
		requests: requests,
		objects:  objects,
		hub:      hub,
		logger:   logger,
	}
}

// Quote returns the deterministic price for a tier and member count.
func (h *SubscriptionHandler) Quote(w http.ResponseWriter, r *http.Request) {
	tier := model.PlanTier(r.URL.Query().Get("tier"))
	if !tier.Valid() {
		writeError(w, http.StatusBadRequest, "unknown plan tier")
		return
	}
	count, err := strconv.Atoi(r.URL.Query().Get("members"))
	if err != nil || count < 0 {
		writeError(w, http.StatusBadRequest, "members must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":    tier,
		"members": count,
		"amount":  subscription.Price(tier, count),
	})
}

// List returns the caller's payment requests, newest first.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListByRequester(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list payment requests", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.PaymentRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// Submit runs the whole subscription wizard server-side from one multipart
// request: tier, member count, optional keep list, and the receipt file.
// Validation failures are rejected before the receipt is uploaded; a
// duplicate pending request is reported distinctly.
func (h *SubscriptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
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

	// Fast feedback only; the store's unique index is the real guard.
	if pending, err := h.requests.PendingByRequester(group.Manager.ID); err == nil && pending != nil {
		writeError(w, http.StatusConflict, "a request is already pending")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize)
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	tier := model.PlanTier(r.FormValue("tier"))
	count, err := strconv.Atoi(r.FormValue("member_count"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "member_count must be an integer")
		return
	}
	var keep []string
	if raw := r.FormValue("keep_member_ids"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &keep); err != nil {
			writeError(w, http.StatusBadRequest, "keep_member_ids must be a JSON array of profile IDs")
			return
		}
	}

	wizard := subscription.NewWizard(group)
	if err := wizard.ChooseTier(tier); err != nil {
		h.writeWizardError(w, err)
		return
	}
	if err := wizard.ChooseMemberCount(count); err != nil {
		h.writeWizardError(w, err)
		return
	}
	if wizard.Step() == subscription.StepSelectingKeeps {
		for _, id := range keep {
			if err := wizard.SelectMember(id); err != nil {
				h.writeWizardError(w, err)
				return
			}
		}
		if err := wizard.ConfirmSelection(); err != nil {
			h.writeWizardError(w, err)
			return
		}
	}

	// The receipt goes to storage before the insert so the row never exists
	// without its proof. If the insert then loses a duplicate-pending race,
	// the uploaded object is orphaned; that rare leak is accepted over a
	// two-phase insert, and the pending pre-check above keeps the window
	// small.
	receiptURL, ok := h.uploadReceipt(w, r)
	if !ok {
		return
	}
	if err := wizard.AttachReceipt(receiptURL); err != nil {
		h.writeWizardError(w, err)
		return
	}

	pr, err := wizard.Submit(h.requests)
	if err != nil {
		h.writeWizardError(w, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("payment_request", "created", pr.ID, map[string]any{
		"requester_id": pr.RequesterID,
		"tier":         pr.Tier,
	}))
	writeJSON(w, http.StatusCreated, pr)
}

func (h *SubscriptionHandler) uploadReceipt(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.objects.Configured() {
		writeError(w, http.StatusServiceUnavailable, "file storage is not configured")
		return "", false
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a payment receipt file is required")
		return "", false
	}
	defer file.Close()

	key := "receipts/" + uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	url, err := h.objects.Upload(r.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("upload receipt", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload receipt")
		return "", false
	}
	return url, true
}

func (h *SubscriptionHandler) writeWizardError(w http.ResponseWriter, err error) {
	var ve *subscription.ValidationError
	switch {
	case errors.Is(err, store.ErrDuplicatePending):
		writeError(w, http.StatusConflict, "a request is already pending")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Reason)
	default:
		h.logger.Error("submit subscription request", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit request")
	}
}
