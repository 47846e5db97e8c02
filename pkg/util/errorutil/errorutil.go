package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/finance"
	"github.com/fixzit/fm-service/internal/idempotency"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/workflow"
)

// Error codes rendered to API clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeRequestInFlight   = "REQUEST_IN_FLIGHT"
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodePostingFailed     = "POSTING_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
		Err:        repository.ErrNotFound,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewIllegalTransition names both sides of a rejected status change.
func NewIllegalTransition(kind, current, requested string) error {
	return &DomainError{
		Code:       CodeIllegalTransition,
		Message:    fmt.Sprintf("cannot move %s from %s to %s", kind, current, requested),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"kind":             kind,
			"current_status":   current,
			"requested_status": requested,
		},
		Err: workflow.ErrIllegalTransition,
	}
}

// NewStaleState reports a lost optimistic write.
func NewStaleState(kind, id, current, attempted string) error {
	return &DomainError{
		Code:       CodeConflict,
		Message:    fmt.Sprintf("%s %s was changed by someone else (now %s, attempted %s)", kind, id, current, attempted),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"kind":             kind,
			"id":               id,
			"current_status":   current,
			"attempted_status": attempted,
		},
		Err: repository.ErrVersionConflict,
	}
}

func NewPostingFailed(err error) error {
	return &DomainError{
		Code:       CodePostingFailed,
		Message:    "journal posting failed; lock was not applied",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var transitionErr *workflow.TransitionError
	if errors.As(err, &transitionErr) {
		return NewIllegalTransition(string(transitionErr.Kind), transitionErr.From, transitionErr.To).(*DomainError)
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &DomainError{Code: CodeNotFound, Message: "resource not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrDuplicate):
		return &DomainError{Code: CodeConflict, Message: err.Error(), HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, calendar.ErrInvalidConfig):
		return &DomainError{Code: CodeConfiguration, Message: "calendar configuration invalid", HTTPStatus: http.StatusInternalServerError, Err: err}
	case errors.Is(err, calendar.ErrInvalidSLAHours), errors.Is(err, finance.ErrUnbalancedJournal):
		return &DomainError{Code: CodeValidation, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, idempotency.ErrInFlight):
		return &DomainError{Code: CodeRequestInFlight, Message: "request with this idempotency key is still running", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, idempotency.ErrKeyReused):
		return &DomainError{Code: CodeConflict, Message: err.Error(), HTTPStatus: http.StatusConflict, Err: err}
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
