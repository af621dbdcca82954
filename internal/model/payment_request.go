package model

import "time"

// RequestStatus is the persisted state of a payment request. A request is
// created pending and resolved exactly once to approved or rejected.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// RenewalMetadata records what the requester asked for: how many dependent
// slots, and which dependents stay active after a downgrade. An empty
// KeepMemberIDs on a request with zero dependents means nothing to keep.
type RenewalMetadata struct {
	SubCount      int      `json:"sub_count"`
	KeepMemberIDs []string `json:"keep_member_ids"`
}

type PaymentRequest struct {
	ID          int64           `json:"id"`
	RequesterID string          `json:"requester_id"`
	Amount      int             `json:"amount"`
	Tier        PlanTier        `json:"tier"`
	Status      RequestStatus   `json:"status"`
	ReceiptURL  string          `json:"receipt_url"`
	Renewal     RenewalMetadata `json:"renewal_metadata"`
	ResolvedBy  *string         `json:"resolved_by"`
	ResolvedAt  *time.Time      `json:"resolved_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
