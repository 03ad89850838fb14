// Package errors provides custom error types for the signalbus system.
// These errors enable programmatic error checking by callers (errors.Is /
// errors.As) and keep the broker's failure taxonomy in one place.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the signalbus system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotReady indicates the manager is not in the Ready state
	ErrNotReady = errors.New("not ready")

	// ErrShuttingDown indicates the system is draining and rejects new work
	ErrShuttingDown = errors.New("shutting down")

	// ErrOverloaded indicates the dispatch queue is at capacity
	ErrOverloaded = errors.New("overloaded")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a host signal family could not be connected
	ErrUnavailable = errors.New("unavailable")

	// ErrClosed indicates an operation on a closed sink or component
	ErrClosed = errors.New("closed")
)

// ValidationError represents a validation failure on caller-supplied input,
// such as a bad subscriber id or an unknown event kind. Nothing is recorded
// when a ValidationError is returned.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// DuplicateError represents an attempt to register a resource under an ID
// that is already taken.
type DuplicateError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with ID %s already exists", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *DuplicateError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// NewDuplicateError creates a new DuplicateError
func NewDuplicateError(resource, id string) *DuplicateError {
	return &DuplicateError{Resource: resource, ID: id}
}

// NotReadyError is returned when an operation arrives while the manager is
// outside the Ready state. The State field carries the state the manager was
// actually in.
type NotReadyError struct {
	Operation string
	State     string
}

// Error implements the error interface
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("cannot %s: manager is %s", e.Operation, e.State)
}

// Is implements errors.Is support
func (e *NotReadyError) Is(target error) bool {
	if e.State == "shutting_down" || e.State == "shutdown" {
		return target == ErrShuttingDown || target == ErrNotReady
	}
	return target == ErrNotReady
}

// NewNotReadyError creates a new NotReadyError
func NewNotReadyError(operation, state string) *NotReadyError {
	return &NotReadyError{Operation: operation, State: state}
}

// ConnectionError represents a non-fatal failure to connect a signal adapter
// to its host signal family. The system continues degraded.
type ConnectionError struct {
	Adapter string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("adapter %s connection failed: %s", e.Adapter, e.Message)
	}
	return fmt.Sprintf("adapter %s connection failed: %v", e.Adapter, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConnectionError) Is(target error) bool {
	return target == ErrUnavailable
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(adapter string, err error) *ConnectionError {
	return &ConnectionError{Adapter: adapter, Err: err}
}

// OverloadError represents the dispatch queue exceeding its bound. The oldest
// queued submission was dropped to make room; it is never surfaced to the
// host callback path.
type OverloadError struct {
	QueueSize int
	Dropped   uint64
}

// Error implements the error interface
func (e *OverloadError) Error() string {
	return fmt.Sprintf("dispatch queue at capacity (%d), %d events dropped so far", e.QueueSize, e.Dropped)
}

// Is implements errors.Is support
func (e *OverloadError) Is(target error) bool {
	return target == ErrOverloaded
}

// ShutdownError represents in-flight work abandoned when a shutdown deadline
// expired. Shutdown still completes when this error is returned.
type ShutdownError struct {
	Component string
	Abandoned int
	Err       error
}

// Error implements the error interface
func (e *ShutdownError) Error() string {
	if e.Abandoned > 0 {
		return fmt.Sprintf("%s shutdown timed out, %d work items abandoned", e.Component, e.Abandoned)
	}
	return fmt.Sprintf("%s shutdown timed out: %v", e.Component, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ShutdownError) Is(target error) bool {
	return target == ErrTimeout
}

// DispatchError wraps an error from a subscriber sink with delivery context.
// Dispatch errors are isolated to the failing subscriber and logged; they
// never interrupt delivery to the remaining subscribers.
type DispatchError struct {
	SubscriberID string
	Kind         string
	Err          error
}

// Error implements the error interface
func (e *DispatchError) Error() string {
	return fmt.Sprintf("delivery to subscriber %s failed for %s: %v", e.SubscriberID, e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError
func NewDispatchError(subscriberID, kind string, err error) *DispatchError {
	return &DispatchError{SubscriberID: subscriberID, Kind: kind, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotReady checks if an error indicates the manager was not ready
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsOverloaded checks if an error is a queue overload error
func IsOverloaded(err error) bool {
	return errors.Is(err, ErrOverloaded)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable checks if an error indicates adapter unavailability
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapConnection wraps an error as a ConnectionError
func WrapConnection(adapter string, err error) error {
	if err == nil {
		return nil
	}
	return NewConnectionError(adapter, err)
}

// WrapDispatch wraps an error as a DispatchError
func WrapDispatch(subscriberID, kind string, err error) error {
	if err == nil {
		return nil
	}
	return NewDispatchError(subscriberID, kind, err)
}
