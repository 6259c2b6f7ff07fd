package app

import (
	"errors"
	"fmt"
	"net/http"

	"doccontrol/api/internal/lifecycle"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func invalidState(message string, details any) *DomainError {
	return domainError(http.StatusConflict, "INVALID_STATE", message, details)
}

// errStaleAnalysis marks an analysis request for a version that is no longer
// waiting for one.
var errStaleAnalysis = errors.New("analysis is stale")

func staleAnalysis(message string, status lifecycle.VersionStatus) *DomainError {
	err := invalidState(message, map[string]any{"status": status})
	err.cause = errStaleAnalysis
	return err
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

// transitionError converts a refused status change into InvalidState.
func transitionError(err error) error {
	var te *lifecycle.TransitionError
	if errors.As(err, &te) {
		return invalidState(te.Error(), map[string]any{"entity": te.Entity, "from": te.From, "to": te.To})
	}
	return err
}
