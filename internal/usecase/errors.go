package usecase

import (
	"errors"
	"fmt"

	"homecare-booking/pkg/utils"
)

// Failure kinds surfaced to callers. Wrap with fmt.Errorf("...: %w") and
// inspect with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrWindowExpired      = errors.New("window expired")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidState       = errors.New("invalid state")
	ErrValidation         = errors.New("validation failed")
)

// QuotaError carries the guard's decision alongside ErrQuotaExceeded.
type QuotaError struct {
	Decision *QuotaDecision
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrQuotaExceeded, e.Decision.Reason)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// ValidationError keeps per-field messages for the response body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, utils.FormatValidationErrors(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validate(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
