package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidCode covers both a wrong and an expired passcode; callers must not tell them apart.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrDelivery is returned when the SMS or e-mail provider rejects the initial send.
	ErrDelivery = errors.New("failed to send verification code")
	// ErrStorageUnavailable means object storage credentials or signing keys are not configured.
	ErrStorageUnavailable = errors.New("storage not configured")
)

// ValidationError carries a message that is safe to show to the caller.
// It matches ErrBadRequest under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrBadRequest }

// Invalid returns a ValidationError with msg.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
