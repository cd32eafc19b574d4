package domain

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotFound             = errors.New("resource not found")
	ErrUnsupportedMediaType = errors.New("only image files are allowed")
	ErrPayloadTooLarge      = errors.New("file exceeds the upload size limit")
	ErrTooManyAttempts      = errors.New("too many attempts")
	ErrUnavailable          = errors.New("dependency unavailable")
)

// ValidationError carries a client-facing message and matches ErrValidation
type ValidationError struct {
	Msg string
}

// Invalid returns a ValidationError with the given message
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }
