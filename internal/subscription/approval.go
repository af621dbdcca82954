package subscription

import (
	"errors"
	"log/slog"
	"time"

	"github.com/healixhq/healix/internal/email"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/push"
	"github.com/healixhq/healix/internal/store"
	ws "github.com/healixhq/healix/internal/websocket"
)

// subscriptionPeriod is how long an approved subscription stays active.
const subscriptionPeriod = 30 * 24 * time.Hour

// Approver resolves pending payment requests. Approval applies the downgrade
// lock contract in one transaction (see store.PaymentRequestStore.Approve);
// the Approver layers notifications and realtime broadcast on top, all
// best-effort.
type Approver struct {
	requests *store.PaymentRequestStore
	users    *store.UserStore
	pushSubs *store.PushStore
	hub      *ws.Hub
	email    *email.Client
	push     *push.Service
	logger   *slog.Logger
}

func NewApprover(
	requests *store.PaymentRequestStore,
	users *store.UserStore,
	pushSubs *store.PushStore,
	hub *ws.Hub,
	emailClient *email.Client,
	pushSvc *push.Service,
	logger *slog.Logger,
) *Approver {
	return &Approver{
		requests: requests,
		users:    users,
		pushSubs: pushSubs,
		hub:      hub,
		email:    emailClient,
		push:     pushSvc,
		logger:   logger,
	}
}

// Approve resolves the request to approved: the requester's subscription
// becomes active on the requested tier for one period, dependents named in
// keep_member_ids are unlocked, and all other dependents are locked.
func (a *Approver) Approve(id int64, adminID string) (*model.PaymentRequest, error) {
	pr, err := a.requests.Approve(id, adminID, time.Now().Add(subscriptionPeriod))
	if err != nil || pr == nil {
		return pr, err
	}
	a.notify(pr)
	return pr, nil
}

// Reject resolves the request to rejected. No profile rows change.
func (a *Approver) Reject(id int64, adminID string) (*model.PaymentRequest, error) {
	pr, err := a.requests.Reject(id, adminID)
	if err != nil || pr == nil {
		return pr, err
	}
	a.notify(pr)
	return pr, nil
}

// notify broadcasts the resolution and informs the requester by email and
// push. Failures are logged, never propagated; the resolution itself is
// already durable.
func (a *Approver) notify(pr *model.PaymentRequest) {
	if a.hub != nil {
		a.hub.Broadcast(ws.NewMessage("payment_request", string(pr.Status), pr.ID, map[string]any{
			"requester_id": pr.RequesterID,
			"tier":         pr.Tier,
		}))
	}

	user, err := a.users.GetByID(pr.RequesterID)
	if err != nil || user == nil {
		a.logger.Warn("requester lookup for notification failed", "request_id", pr.ID, "error", err)
		return
	}

	if a.email != nil && a.email.Configured() {
		if err := a.email.SendRequestResolved(user.Email, user.Name, string(pr.Status), string(pr.Tier), pr.Amount); err != nil {
			a.logger.Warn("send resolution email", "request_id", pr.ID, "error", err)
		}
	}

	if a.push != nil {
		subs, err := a.pushSubs.ListByUser(user.ID)
		if err != nil {
			a.logger.Warn("list push subscriptions", "user_id", user.ID, "error", err)
			return
		}
		payload := push.Payload{
			Title: "Subscription request " + string(pr.Status),
			Body:  "Your " + string(pr.Tier) + " plan request has been " + string(pr.Status) + ".",
			Tag:   "payment-request",
		}
		for _, sub := range subs {
			if err := a.push.Send(&sub, payload); err != nil {
				if errors.Is(err, push.ErrExpired) {
					if derr := a.pushSubs.DeleteByEndpoint(sub.Endpoint); derr != nil {
						a.logger.Warn("delete expired push subscription", "error", derr)
					}
					continue
				}
				a.logger.Warn("send push notification", "user_id", user.ID, "error", err)
			}
		}
	}
}
