package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents a missing account, relationship, conversation or document
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeDuplicateRelationship represents a friend request for a pair that already has an edge
	ErrorTypeDuplicateRelationship ErrorType = "duplicate_relationship"
	// ErrorTypeInvalidInput represents rejected caller input
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	// ErrorTypePartialWrite represents a linked write that failed after an earlier write committed
	ErrorTypePartialWrite ErrorType = "partial_write"
	// ErrorTypeStore represents document store failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuth represents authentication failures
	ErrorTypeAuth ErrorType = "auth"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// ErrNotFound is returned when a referenced account, edge or conversation does not exist
type ErrNotFound struct {
	*BaseError
	Entity string
	ID     string
}

func NewNotFound(entity, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", entity, id), nil),
		Entity:    entity,
		ID:        id,
	}
}

// ErrDuplicateRelationship is returned when a friend request targets a pair that already has an edge
type ErrDuplicateRelationship struct {
	*BaseError
	FromID string
	ToID   string
}

func NewDuplicateRelationship(fromID, toID string) *ErrDuplicateRelationship {
	return &ErrDuplicateRelationship{
		BaseError: NewBaseError(ErrorTypeDuplicateRelationship, fmt.Sprintf("relationship already exists between %s and %s", fromID, toID), nil),
		FromID:    fromID,
		ToID:      toID,
	}
}

// ErrInvalidInput is returned for empty content, self references and malformed identifiers
type ErrInvalidInput struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidInput(field, reason string) *ErrInvalidInput {
	return &ErrInvalidInput{
		BaseError: NewBaseError(ErrorTypeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrPartialWriteFailure is returned when the second of two linked writes fails after the first committed.
// Committed names the write that is already durable.
type ErrPartialWriteFailure struct {
	*BaseError
	Operation string
	Committed string
}

func NewPartialWriteFailure(operation, committed string, err error) *ErrPartialWriteFailure {
	return &ErrPartialWriteFailure{
		BaseError: NewBaseError(ErrorTypePartialWrite, fmt.Sprintf("%s partially applied (committed: %s)", operation, committed), err),
		Operation: operation,
		Committed: committed,
	}
}

// ErrStoreFailed wraps a failed document store call
type ErrStoreFailed struct {
	*BaseError
	Operation string
}

func NewStoreFailed(operation string, err error) *ErrStoreFailed {
	return &ErrStoreFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// ErrConfigValidationFailed is returned when a config value cannot be used
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrUnauthorized is returned for missing or rejected credentials
var ErrUnauthorized = NewBaseError(ErrorTypeAuth, "unauthorized", nil)

func NewUnauthorized(reason string) *BaseError {
	return NewBaseError(ErrorTypeAuth, reason, nil)
}

// Helper functions

type baseCarrier interface {
	base() *BaseError
}

func (e *BaseError) base() *BaseError {
	return e
}

// AsBase finds the first BaseError in err's chain, including ones embedded in typed errors
func AsBase(err error) (*BaseError, bool) {
	var carrier baseCarrier
	if stderrors.As(err, &carrier) {
		return carrier.base(), true
	}
	return nil, false
}

// TypeOf returns the category of the first BaseError in err's chain, or "" when there is none
func TypeOf(err error) ErrorType {
	if b, ok := AsBase(err); ok {
		return b.Type
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable reports whether the caller may safely retry.
// Only plain store failures qualify; a partial write already committed its first half.
func IsRetryable(err error) bool {
	return IsErrorType(err, ErrorTypeStore)
}

// HTTPStatus maps an error to the status code handlers respond with
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeDuplicateRelationship:
		return http.StatusConflict
	case ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
