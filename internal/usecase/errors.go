package usecase

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvalidState           = errors.New("invalid state")
	ErrImmutable              = errors.New("booking is immutable")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDriverMismatch         = errors.New("driver mismatch")
	ErrForbiddenRole          = errors.New("forbidden role")
	ErrDriverUnavailable      = errors.New("driver unavailable")
	ErrValidation             = errors.New("validation failed")
	// ErrPublishFailure never leaves the relay; it is recorded on the outbox row.
	ErrPublishFailure = errors.New("publish failure")
)

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidTransition,
	ErrInvalidState,
	ErrImmutable,
	ErrConcurrentModification,
	ErrDriverMismatch,
	ErrForbiddenRole,
	ErrDriverUnavailable,
	ErrValidation,
}

// IsRetryable reports whether the whole operation may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsDomainError reports whether err is one of the business rule failures
// above, as opposed to an infrastructure error.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
