package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the mock test domain. Handlers map these onto HTTP
// status codes; services must return them unwrapped or via %w.
var (
	ErrTestNotFound        = errors.New("mock test not found")
	ErrInvalidTestState    = errors.New("mock test is not in progress")
	ErrWrongSection        = errors.New("section does not match the test's current section")
	ErrContentUnavailable  = errors.New("no eligible content available")
	ErrDuplicateSubmission = errors.New("a submission for this section is already being evaluated")
	ErrActiveTestExists    = errors.New("an in-progress mock test already exists")
	ErrValidationFailed    = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
)

// PermissionError carries the denied access details for logging; handlers
// render it as 403 without exposing the internals.
type PermissionError struct {
	UserID string
	TestID uint
	Action string
	Reason string
}

func NewPermissionError(userID string, testID uint, action, reason string) *PermissionError {
	return &PermissionError{
		UserID: userID,
		TestID: testID,
		Action: action,
		Reason: reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s test %d: %s",
		e.UserID, e.Action, e.TestID, e.Reason)
}
