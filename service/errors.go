package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUserMismatch        = errors.New("User ID mismatch")
	ErrRequestInFlight     = errors.New("an identical refinement is already in progress")
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is still in progress")
	ErrScriptNotComplete   = errors.New("script generation is not complete")
	ErrRefinementClosed    = errors.New("refinement can no longer be changed")
	ErrMetadataUnavailable = errors.New("script metadata is not available")
	ErrCallbackForbidden   = errors.New("invalid workflow secret")
)

// ValidationError is a request that does not match its schema. It is always
// returned before any side effect.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// newValidationError converts validator errors. Missing required values are
// reported as "Missing required fields", anything else as "Invalid request".
func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Message: err.Error()}
	}
	ve := &ValidationError{Message: "Invalid request"}
	missing := false
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fe.Field())
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = true
		}
	}
	if missing {
		ve.Message = "Missing required fields"
	} else if len(verrs) == 1 && verrs[0].Tag() == "refinement_type" {
		ve.Message = "Invalid refinement type"
	}
	return ve
}

// DispatchError is a failed hand-off to a workflow webhook. Credits for the
// operation have already been released when it is returned.
type DispatchError struct {
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
