package subscription

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/healixhq/healix/internal/database"
	"github.com/healixhq/healix/internal/email"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

func setupApproverTest(t *testing.T) (*Approver, *store.PaymentRequestStore, *store.ProfileStore, *store.UserStore) {
	t.Helper()
	// File-backed rather than ":memory:": the modernc driver gives every pooled
	// connection its own private in-memory database, and the resolve paths
	// query through a second connection while a transaction is open.
	db, err := database.Open(filepath.Join(t.TempDir(), "healix_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rs := store.NewPaymentRequestStore(db)
	ps := store.NewProfileStore(db)
	us := store.NewUserStore(db)
	pss := store.NewPushStore(db)

	// Unconfigured email and no push service: notifications are skipped,
	// resolution must still succeed.
	a := NewApprover(rs, us, pss, nil, email.NewClient("", "noreply@healix.app"), nil, slog.Default())
	return a, rs, ps, us
}

func TestApproverApprove(t *testing.T) {
	a, rs, ps, us := setupApproverTest(t)

	us.Create("user-1", "alice@example.com", "Alice", "hash")
	mgr, _ := ps.CreateManager("user-1", "Alice")
	created, _ := rs.Create(mgr.ID, 800, model.TierPro, "", model.RenewalMetadata{})

	pr, err := a.Approve(created.ID, "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if pr.Status != model.RequestApproved {
		t.Errorf("status = %q, want approved", pr.Status)
	}

	p, _ := ps.GetByID(mgr.ID)
	if p.SubscriptionStatus != model.StatusActive {
		t.Errorf("subscription status = %q, want active", p.SubscriptionStatus)
	}
	if p.SubscriptionEndDate == nil {
		t.Error("expected a subscription period end to be set")
	}
}

func TestApproverReject(t *testing.T) {
	a, rs, ps, us := setupApproverTest(t)

	us.Create("user-1", "alice@example.com", "Alice", "hash")
	mgr, _ := ps.CreateManager("user-1", "Alice")
	created, _ := rs.Create(mgr.ID, 500, model.TierStandard, "", model.RenewalMetadata{})

	pr, err := a.Reject(created.ID, "admin-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if pr.Status != model.RequestRejected {
		t.Errorf("status = %q, want rejected", pr.Status)
	}
}

func TestApproverSecondResolveFails(t *testing.T) {
	a, rs, ps, us := setupApproverTest(t)

	us.Create("user-1", "alice@example.com", "Alice", "hash")
	mgr, _ := ps.CreateManager("user-1", "Alice")
	created, _ := rs.Create(mgr.ID, 500, model.TierStandard, "", model.RenewalMetadata{})

	if _, err := a.Approve(created.ID, "admin-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := a.Reject(created.ID, "admin-2"); !errors.Is(err, store.ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
}

func TestApproverUnknownRequest(t *testing.T) {
	a, _, _, _ := setupApproverTest(t)

	pr, err := a.Approve(999, "admin-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if pr != nil {
		t.Error("expected nil for unknown request")
	}
}
