package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/healixhq/healix/internal/auth"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
	"github.com/healixhq/healix/internal/subscription"
)

type AdminHandler struct {
	requests *store.PaymentRequestStore
	approver *subscription.Approver
	logger   *slog.Logger
}

func NewAdminHandler(requests *store.PaymentRequestStore, approver *subscription.Approver, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		requests: requests,
		approver: approver,
		logger:   logger,
	}
}

// ListRequests returns payment requests filtered by status (default pending).
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := model.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.RequestPending
	}
	switch status {
	case model.RequestPending, model.RequestApproved, model.RequestRejected:
	default:
		writeError(w, http.StatusBadRequest, "unknown request status")
		return
	}

	requests, err := h.requests.ListByStatus(status)
	if err != nil {
		h.logger.Error("list payment requests", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.PaymentRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// Approve resolves a pending request and applies the subscription outcome to
// the requester's family.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approver.Approve)
}

// Reject resolves a pending request without changing any profiles.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approver.Reject)
}

func (h *AdminHandler) resolve(w http.ResponseWriter, r *http.Request, fn func(int64, string) (*model.PaymentRequest, error)) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	pr, err := fn(id, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			writeError(w, http.StatusConflict, "request has already been resolved")
			return
		}
		h.logger.Error("resolve payment request", "request_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve request")
		return
	}
	if pr == nil {
		writeError(w, http.StatusNotFound, "payment request not found")
		return
	}
	writeJSON(w, http.StatusOK, pr)
}
