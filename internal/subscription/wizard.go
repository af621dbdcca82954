package subscription

import (
	"fmt"

	"github.com/healixhq/healix/internal/family"
	"github.com/healixhq/healix/internal/model"
	"github.com/healixhq/healix/internal/store"
)

// Step is the wizard's position in the subscription request flow. It is
// independent of the persisted payment request status: the wizard ends at
// StepSubmitted with the request still pending admin review.
type Step string

const (
	StepChoosingTier   Step = "choosing_tier"
	StepChoosingCount  Step = "choosing_member_count"
	StepSelectingKeeps Step = "selecting_members_to_keep"
	StepUploadingProof Step = "uploading_proof"
	StepSubmitted      Step = "submitted"
)

// Wizard drives acquiring or changing a subscription for one family group,
// including the member-selection flow when the requested dependent count
// shrinks below the current one. It is not safe for concurrent use; each
// submission flow owns its own Wizard.
type Wizard struct {
	group *family.Group

	step           Step
	tier           model.PlanTier
	requestedCount int
	selected       []string
	receiptURL     string
}

func NewWizard(group *family.Group) *Wizard {
	return &Wizard{
		group: group,
		step:  StepChoosingTier,
	}
}

func (w *Wizard) Step() Step {
	return w.step
}

// ChooseTier records the requested tier and advances to member count.
func (w *Wizard) ChooseTier(tier model.PlanTier) error {
	if w.step != StepChoosingTier {
		return validationErr(fmt.Sprintf("cannot choose tier at step %s", w.step))
	}
	if !tier.Valid() {
		return validationErr(fmt.Sprintf("unknown plan tier %q", tier))
	}
	w.tier = tier
	w.step = StepChoosingCount
	return nil
}

// ChooseMemberCount records the requested dependent slot count. When the
// count shrinks below the current active dependent count, the flow routes
// through member selection; otherwise all current active dependents are
// retained and the flow proceeds to proof upload.
func (w *Wizard) ChooseMemberCount(count int) error {
	if w.step != StepChoosingCount {
		return validationErr(fmt.Sprintf("cannot choose member count at step %s", w.step))
	}
	if count < 0 {
		return validationErr("member count cannot be negative")
	}

	w.requestedCount = count
	active := w.group.ActiveDependents()

	if count < len(active) {
		w.selected = nil
		w.step = StepSelectingKeeps
		return nil
	}

	w.selected = make([]string, 0, len(active))
	for _, d := range active {
		w.selected = append(w.selected, d.ID)
	}
	w.step = StepUploadingProof
	return nil
}

// SelectMember adds a dependent to the keep list. Selecting an ID that is
// already selected is a no-op. Adding a member when the selection is already
// at the requested capacity leaves the selection unchanged and fails.
func (w *Wizard) SelectMember(id string) error {
	if w.step != StepSelectingKeeps {
		return validationErr(fmt.Sprintf("cannot select members at step %s", w.step))
	}
	for _, s := range w.selected {
		if s == id {
			return nil
		}
	}
	if len(w.selected) >= w.requestedCount {
		return validationErr(fmt.Sprintf("only %d members can stay active on this plan", w.requestedCount))
	}
	dep := w.group.Member(id)
	if dep == nil || dep.IsManager() {
		return validationErr("selected member is not a dependent of this family")
	}
	w.selected = append(w.selected, id)
	return nil
}

// DeselectMember removes a dependent from the keep list.
func (w *Wizard) DeselectMember(id string) {
	for i, s := range w.selected {
		if s == id {
			w.selected = append(w.selected[:i], w.selected[i+1:]...)
			return
		}
	}
}

// Selected returns the current keep list.
func (w *Wizard) Selected() []string {
	return w.selected
}

// ConfirmSelection advances to proof upload. It requires exactly
// requestedCount selected members, not more, not fewer.
func (w *Wizard) ConfirmSelection() error {
	if w.step != StepSelectingKeeps {
		return validationErr(fmt.Sprintf("cannot confirm selection at step %s", w.step))
	}
	if len(w.selected) != w.requestedCount {
		return validationErr(fmt.Sprintf("select exactly %d members to keep active (have %d)", w.requestedCount, len(w.selected)))
	}
	w.step = StepUploadingProof
	return nil
}

// AttachReceipt records the uploaded proof-of-payment URL.
func (w *Wizard) AttachReceipt(url string) error {
	if w.step != StepUploadingProof {
		return validationErr(fmt.Sprintf("cannot attach receipt at step %s", w.step))
	}
	if url == "" {
		return validationErr("a payment receipt is required")
	}
	w.receiptURL = url
	return nil
}

// Amount returns the deterministic price for the chosen tier and slot count.
func (w *Wizard) Amount() int {
	return Price(w.tier, w.requestedCount)
}

// Submit creates the pending payment request. Validation failures and storage
// failures leave the wizard on StepUploadingProof; a duplicate pending
// request surfaces as store.ErrDuplicatePending, which callers must present
// distinctly from a generic failure.
func (w *Wizard) Submit(requests *store.PaymentRequestStore) (*model.PaymentRequest, error) {
	if w.step != StepUploadingProof {
		return nil, validationErr(fmt.Sprintf("cannot submit at step %s", w.step))
	}
	if w.receiptURL == "" {
		return nil, validationErr("a payment receipt is required")
	}
	if w.group.Manager == nil {
		return nil, validationErr("family has no primary account")
	}

	keep := make([]string, len(w.selected))
	copy(keep, w.selected)

	pr, err := requests.Create(w.group.Manager.ID, w.Amount(), w.tier, w.receiptURL, model.RenewalMetadata{
		SubCount:      w.requestedCount,
		KeepMemberIDs: keep,
	})
	if err != nil {
		return nil, err
	}

	w.step = StepSubmitted
	return pr, nil
}
