package subscription

// ValidationError is a client-side invariant violation raised by the wizard
// before any storage call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErr(reason string) error {
	return &ValidationError{Reason: reason}
}
