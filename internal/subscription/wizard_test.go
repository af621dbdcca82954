package subscription

import (
	"errors"
	"testing"

	"github.com/healixhq/healix/internal/database"
	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

func testGroup(depIDs ...string) *family.Group {
	mgrID := "user-1"
	g := &family.Group{
		Manager: &model.Profile{ID: mgrID, Name: "Alice"},
	}
	for _, id := range depIDs {
		g.Dependents = append(g.Dependents, model.Profile{ID: id, ManagerID: &mgrID})
	}
	return g
}

func setupWizardStores(t *testing.T) (*store.PaymentRequestStore, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewPaymentRequestStore(db), store.NewProfileStore(db)
}

func TestWizardFirstSubscription(t *testing.T) {
	rs, ps := setupWizardStores(t)
	ps.CreateManager("user-1", "Alice")

	w := NewWizard(testGroup())
	if w.Step() != StepChoosingTier {
		t.Fatalf("step = %s, want %s", w.Step(), StepChoosingTier)
	}

	if err := w.ChooseTier(model.TierStandard); err != nil {
		t.Fatalf("choose tier: %v", err)
	}
	if err := w.ChooseMemberCount(2); err != nil {
		t.Fatalf("choose count: %v", err)
	}
	// No active dependents to exclude: straight to proof upload.
	if w.Step() != StepUploadingProof {
		t.Fatalf("step = %s, want %s", w.Step(), StepUploadingProof)
	}
	if w.Amount() != 700 {
		t.Errorf("amount = %d, want 700", w.Amount())
	}

	if err := w.AttachReceipt("https://cdn/receipt.png"); err != nil {
		t.Fatalf("attach receipt: %v", err)
	}
	pr, err := w.Submit(rs)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.Step() != StepSubmitted {
		t.Errorf("step = %s, want %s", w.Step(), StepSubmitted)
	}
	if pr.Status != model.RequestPending {
		t.Errorf("status = %q, want pending", pr.Status)
	}
	if pr.Renewal.SubCount != 2 {
		t.Errorf("sub count = %d, want 2", pr.Renewal.SubCount)
	}
	if len(pr.Renewal.KeepMemberIDs) != 0 {
		t.Errorf("keep list = %v, want empty with no dependents", pr.Renewal.KeepMemberIDs)
	}
}

func TestWizardDowngradeRoutesThroughSelection(t *testing.T) {
	w := NewWizard(testGroup("a", "b", "c"))
	w.ChooseTier(model.TierStandard)

	if err := w.ChooseMemberCount(1); err != nil {
		t.Fatalf("choose count: %v", err)
	}
	if w.Step() != StepSelectingKeeps {
		t.Fatalf("step = %s, want %s", w.Step(), StepSelectingKeeps)
	}
}

func TestWizardEqualCountSkipsSelection(t *testing.T) {
	w := NewWizard(testGroup("a", "b"))
	w.ChooseTier(model.TierStandard)

	if err := w.ChooseMemberCount(2); err != nil {
		t.Fatalf("choose count: %v", err)
	}
	if w.Step() != StepUploadingProof {
		t.Fatalf("step = %s, want %s", w.Step(), StepUploadingProof)
	}
	if got := w.Selected(); len(got) != 2 {
		t.Errorf("selected = %v, want both current dependents retained", got)
	}
}

func TestWizardSelectionRules(t *testing.T) {
	w := NewWizard(testGroup("a", "b", "c"))
	w.ChooseTier(model.TierPro)
	w.ChooseMemberCount(2)

	if err := w.SelectMember("a"); err != nil {
		t.Fatalf("select a: %v", err)
	}
	// Duplicate selection is a no-op.
	if err := w.SelectMember("a"); err != nil {
		t.Fatalf("reselect a: %v", err)
	}
	if len(w.Selected()) != 1 {
		t.Fatalf("selected = %v, want 1 entry", w.Selected())
	}

	if err := w.SelectMember("b"); err != nil {
		t.Fatalf("select b: %v", err)
	}

	// Over capacity: rejected, selection unchanged.
	err := w.SelectMember("c")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("overflow err = %v, want ValidationError", err)
	}
	if len(w.Selected()) != 2 {
		t.Errorf("selected = %v, want unchanged after overflow", w.Selected())
	}

	// Only dependents of this family can be kept.
	w.DeselectMember("b")
	if err := w.SelectMember("stranger"); err == nil {
		t.Error("expected error selecting a non-member")
	}
	if err := w.SelectMember("user-1"); err == nil {
		t.Error("expected error selecting the manager")
	}
}

func TestWizardConfirmRequiresExactCount(t *testing.T) {
	w := NewWizard(testGroup("a", "b", "c"))
	w.ChooseTier(model.TierStandard)
	w.ChooseMemberCount(2)

	w.SelectMember("a")
	if err := w.ConfirmSelection(); err == nil {
		t.Fatal("expected error confirming with too few selected")
	}

	w.SelectMember("b")
	if err := w.ConfirmSelection(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if w.Step() != StepUploadingProof {
		t.Errorf("step = %s, want %s", w.Step(), StepUploadingProof)
	}
}

func TestWizardStepOrderEnforced(t *testing.T) {
	w := NewWizard(testGroup("a"))

	if err := w.ChooseMemberCount(1); err == nil {
		t.Error("expected error choosing count before tier")
	}
	if err := w.AttachReceipt("url"); err == nil {
		t.Error("expected error attaching receipt before count")
	}
	if err := w.ChooseTier(model.PlanTier("gold")); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestWizardSubmitRequiresReceipt(t *testing.T) {
	rs, ps := setupWizardStores(t)
	ps.CreateManager("user-1", "Alice")

	w := NewWizard(testGroup())
	w.ChooseTier(model.TierStandard)
	w.ChooseMemberCount(0)

	_, err := w.Submit(rs)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if w.Step() != StepUploadingProof {
		t.Errorf("step = %s, failed submit must not advance", w.Step())
	}
}

func TestWizardSubmitDuplicatePending(t *testing.T) {
	rs, ps := setupWizardStores(t)
	ps.CreateManager("user-1", "Alice")

	first := NewWizard(testGroup())
	first.ChooseTier(model.TierStandard)
	first.ChooseMemberCount(0)
	first.AttachReceipt("https://cdn/r1.png")
	if _, err := first.Submit(rs); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	second := NewWizard(testGroup())
	second.ChooseTier(model.TierPro)
	second.ChooseMemberCount(0)
	second.AttachReceipt("https://cdn/r2.png")
	_, err := second.Submit(rs)
	if !errors.Is(err, store.ErrDuplicatePending) {
		t.Fatalf("err = %v, want ErrDuplicatePending", err)
	}
	if second.Step() != StepUploadingProof {
		t.Errorf("step = %s, failed submit must not advance", second.Step())
	}
}

func TestWizardDowngradeEndToEnd(t *testing.T) {
	rs, ps := setupWizardStores(t)

	mgr, _ := ps.CreateManager("user-1", "Alice")
	depA, _ := ps.CreateDependent(mgr.ID, "A")
	depB, _ := ps.CreateDependent(mgr.ID, "B")
	depC, _ := ps.CreateDependent(mgr.ID, "C")

	group := testGroup(depA.ID, depB.ID, depC.ID)
	w := NewWizard(group)
	w.ChooseTier(model.TierStandard)
	w.ChooseMemberCount(1)
	if err := w.SelectMember(depB.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := w.ConfirmSelection(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := w.AttachReceipt("https://cdn/receipt.png"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	pr, err := w.Submit(rs)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pr.Amount != 600 {
		t.Errorf("amount = %d, want 600", pr.Amount)
	}
	if len(pr.Renewal.KeepMemberIDs) != 1 || pr.Renewal.KeepMemberIDs[0] != depB.ID {
		t.Errorf("keep list = %v, want [%s]", pr.Renewal.KeepMemberIDs, depB.ID)
	}

	// Nothing is applied until an admin approves.
	a, _ := ps.GetByID(depA.ID)
	if a.IsLocked {
		t.Error("submission alone must not lock dependents")
	}
}
