package store

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicatePending is returned when inserting a payment request while
	// another one is still pending for the same requester. The partial unique
	// index on payment_requests is the source of truth; callers must surface
	// this distinctly from generic storage failures.
	ErrDuplicatePending = errors.New("a payment request is already pending")

	// ErrAlreadyResolved is returned when approving or rejecting a payment
	// request that is no longer pending.
	ErrAlreadyResolved = errors.New("payment request already resolved")

	// ErrDuplicatePlan is returned when inserting a daily plan that already
	// exists for the (profile, date) key.
	ErrDuplicatePlan = errors.New("daily plan already exists for this date")
)

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
