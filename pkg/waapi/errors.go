package waapi

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected indicates no WAAPI session has been established yet.
	ErrNotConnected = errors.New("waapi not connected")

	// ErrReconnecting indicates the session is transitioning; callers should
	// retry once the reconnect completes.
	ErrReconnecting = errors.New("waapi is reconnecting")

	// ErrAlreadyReconnecting indicates a concurrent Connect is in progress.
	ErrAlreadyReconnecting = errors.New("waapi reconnection already in progress")

	// ErrDispatcherStopped indicates the dispatcher consumer is not running.
	ErrDispatcherStopped = errors.New("waapi dispatcher not running")

	// ErrConsumerGoroutine is a programmer error: a request was submitted
	// from the dispatcher's own consumer goroutine, which would deadlock on
	// its own reply.
	ErrConsumerGoroutine = errors.New("waapi request submitted from dispatcher consumer goroutine")
)

// ValidationError is raised when argument validation fails before any call is
// issued: malformed arguments, empty lists where non-empty is required, length
// mismatches, unknown variables, unknown verbs.
type ValidationError struct {
	Message string
	Field   string // offending field (optional)
	Value   any    // offending value (optional)
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (field %q)", e.Message, e.Field)
	}
	return e.Message
}

// NewValidationError creates a ValidationError without field context.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// QueueFullError is raised when the dispatcher queue backpressure limit is hit.
type QueueFullError struct {
	Size int // queue size at rejection time
	Max  int // configured limit
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("waapi queue full (%d/%d requests)", e.Size, e.Max)
}

// TimeoutError is raised when a waiter gives up on a reply channel. The
// dispatcher may still complete the call; the late reply is dropped.
type TimeoutError struct {
	URI     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("waapi call to %q timed out after %v", e.URI, e.Timeout)
}

// TransportError is a low-level WebSocket/IO failure.
type TransportError struct {
	URI string // in-flight URI, if any
	Err error
}

func (e *TransportError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("waapi transport error on %q: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("waapi transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CallError is an application-level error returned by the Authoring API.
type CallError struct {
	URI     string
	Message string
	Err     error // underlying cause, if any
}

func (e *CallError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("[%s] %s", e.URI, e.Message)
	}
	return e.Message
}

func (e *CallError) Unwrap() error { return e.Err }

// NotFoundError is raised when an Authoring object path cannot be resolved.
type NotFoundError struct {
	Message string
	Path    string
}

func (e *NotFoundError) Error() string { return e.Message }

// BusinessError wraps higher-level adapter failures with the operation that
// failed and a best-effort details map. No stack traces cross the wire; this
// is the structured form surfaced to clients.
type BusinessError struct {
	Message   string
	Operation string
	Details   map[string]any
	Err       error
}

func (e *BusinessError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s", e.Operation, e.Message)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error { return e.Err }

// NewBusinessError creates a BusinessError for the given operation.
func NewBusinessError(operation, format string, args ...any) *BusinessError {
	return &BusinessError{
		Message:   fmt.Sprintf(format, args...),
		Operation: operation,
	}
}
