package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/healixhq/healix/internal/model"
)

type PaymentRequestStore struct {
	db *sql.DB
}

func NewPaymentRequestStore(db *sql.DB) *PaymentRequestStore {
	return &PaymentRequestStore{db: db}
}

func scanPaymentRequest(scanner interface{ Scan(...any) error }) (*model.PaymentRequest, error) {
	var pr model.PaymentRequest
	var renewal string
	var resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	err := scanner.Scan(
		&pr.ID, &pr.RequesterID, &pr.Amount, &pr.Tier, &pr.Status,
		&pr.ReceiptURL, &renewal, &resolvedBy, &resolvedAt,
		&pr.CreatedAt, &pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(renewal), &pr.Renewal); err != nil {
		return nil, fmt.Errorf("decode renewal metadata: %w", err)
	}
	if resolvedBy.Valid {
		pr.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		pr.ResolvedAt = &t
	}
	return &pr, nil
}

const paymentRequestCols = `id, requester_id, amount, tier, status, receipt_url, renewal_metadata, resolved_by, resolved_at, created_at, updated_at`

// Create inserts a pending payment request. The partial unique index on
// (requester_id) WHERE status = 'pending' is the authoritative guard against
// duplicate pending requests; a violation surfaces as ErrDuplicatePending.
func (s *PaymentRequestStore) Create(requesterID string, amount int, tier model.PlanTier, receiptURL string, renewal model.RenewalMetadata) (*model.PaymentRequest, error) {
	meta, err := json.Marshal(renewal)
	if err != nil {
		return nil, fmt.Errorf("encode renewal metadata: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO payment_requests (requester_id, amount, tier, receipt_url, renewal_metadata) VALUES (?, ?, ?, ?, ?)`,
		requesterID, amount, tier, receiptURL, string(meta),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePending
		}
		return nil, fmt.Errorf("insert payment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PaymentRequestStore) GetByID(id int64) (*model.PaymentRequest, error) {
	row := s.db.QueryRow(`SELECT `+paymentRequestCols+` FROM payment_requests WHERE id = ?`, id)
	pr, err := scanPaymentRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	return pr, nil
}

// PendingByRequester returns the requester's pending request, or nil.
func (s *PaymentRequestStore) PendingByRequester(requesterID string) (*model.PaymentRequest, error) {
	row := s.db.QueryRow(
		`SELECT `+paymentRequestCols+` FROM payment_requests WHERE requester_id = ? AND status = 'pending'`,
		requesterID,
	)
	pr, err := scanPaymentRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending request: %w", err)
	}
	return pr, nil
}

// LatestApprovedByRequester returns the most recently approved request, or nil.
func (s *PaymentRequestStore) LatestApprovedByRequester(requesterID string) (*model.PaymentRequest, error) {
	row := s.db.QueryRow(
		`SELECT `+paymentRequestCols+` FROM payment_requests
		 WHERE requester_id = ? AND status = 'approved'
		 ORDER BY resolved_at DESC LIMIT 1`,
		requesterID,
	)
	pr, err := scanPaymentRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest approved request: %w", err)
	}
	return pr, nil
}

func (s *PaymentRequestStore) ListByRequester(requesterID string) ([]model.PaymentRequest, error) {
	return s.list(`WHERE requester_id = ?`, requesterID)
}

func (s *PaymentRequestStore) ListByStatus(status model.RequestStatus) ([]model.PaymentRequest, error) {
	return s.list(`WHERE status = ?`, status)
}

func (s *PaymentRequestStore) list(where string, arg any) ([]model.PaymentRequest, error) {
	rows, err := s.db.Query(
		`SELECT `+paymentRequestCols+` FROM payment_requests `+where+` ORDER BY created_at DESC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query payment requests: %w", err)
	}
	defer rows.Close()

	var requests []model.PaymentRequest
	for rows.Next() {
		pr, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment request: %w", err)
		}
		requests = append(requests, *pr)
	}
	return requests, rows.Err()
}

// Reject resolves a pending request to rejected. Resolving a request that is
// not pending returns ErrAlreadyResolved; an unknown ID returns (nil, nil).
func (s *PaymentRequestStore) Reject(id int64, adminID string) (*model.PaymentRequest, error) {
	result, err := s.db.Exec(
		`UPDATE payment_requests
		 SET status = 'rejected', resolved_by = ?, resolved_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		adminID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("reject payment request: %w", err)
	}
	return s.afterResolve(id, result)
}

// Approve resolves a pending request to approved and, in the same
// transaction, applies the outcome to the requester's family: the manager's
// subscription becomes active on the requested tier until periodEnd, every
// dependent named in keep_member_ids is unlocked, and every other dependent
// is locked.
func (s *PaymentRequestStore) Approve(id int64, adminID string, periodEnd time.Time) (*model.PaymentRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE payment_requests
		 SET status = 'approved', resolved_by = ?, resolved_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'pending'`,
		adminID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("approve payment request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.afterResolve(id, result)
	}

	row := tx.QueryRow(`SELECT `+paymentRequestCols+` FROM payment_requests WHERE id = ?`, id)
	pr, err := scanPaymentRequest(row)
	if err != nil {
		return nil, fmt.Errorf("reload payment request: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE profiles SET subscription_status = 'active', plan_tier = ?, subscription_end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		pr.Tier, periodEnd, pr.RequesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("activate manager subscription: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE profiles SET is_locked = 1, updated_at = CURRENT_TIMESTAMP WHERE manager_id = ?`,
		pr.RequesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock dependents: %w", err)
	}

	if len(pr.Renewal.KeepMemberIDs) > 0 {
		placeholders := strings.Repeat("?,", len(pr.Renewal.KeepMemberIDs))
		placeholders = placeholders[:len(placeholders)-1]
		args := []any{pr.RequesterID}
		for _, kid := range pr.Renewal.KeepMemberIDs {
			args = append(args, kid)
		}
		_, err = tx.Exec(
			`UPDATE profiles SET is_locked = 0, updated_at = CURRENT_TIMESTAMP WHERE manager_id = ? AND id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("unlock kept dependents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

// afterResolve maps a zero-row resolve to ErrAlreadyResolved or not-found.
func (s *PaymentRequestStore) afterResolve(id int64, result sql.Result) (*model.PaymentRequest, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return s.GetByID(id)
	}
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return nil, ErrAlreadyResolved
}
