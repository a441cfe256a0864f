package services

import (
	"fmt"
	"net/http"
)

// ServiceError is the caller-visible error envelope. Status is the
// HTTP-ish classification the presentation layer maps from; Code is
// stable and machine-readable.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

// The approval engine's caller-visible taxonomy. "No active chain" is
// deliberately absent: approval not being required is a normal result,
// not an error.
var (
	// ErrNoPendingStep: a decision arrived but no step is currently
	// actionable (already resolved, never materialized, or a racing
	// decision on a not-yet-reachable step).
	ErrNoPendingStep = newServiceError(http.StatusConflict, "APPROVAL_NO_PENDING_STEP", "no pending approval step", nil)
	// ErrForbidden: the actor is not the approver and holds no valid
	// delegation grant.
	ErrForbidden = newServiceError(http.StatusForbidden, "APPROVAL_FORBIDDEN", "actor may not decide for this approver", nil)
	// ErrEngineUnavailable: the chain was deactivated between preview
	// and decision; the caller should refresh state.
	ErrEngineUnavailable = newServiceError(http.StatusConflict, "APPROVAL_ENGINE_UNAVAILABLE", "approval chain is no longer active", nil)
)
