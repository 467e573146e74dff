package errtrack

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region category
// Category groups tracked errors by the subsystem that raised them.
type Category string

const (
	CategoryQuantum       Category = "QUANTUM"
	CategoryConsciousness Category = "CONSCIOUSNESS"
	CategoryEvolution     Category = "EVOLUTION"
	CategoryEmotional     Category = "EMOTIONAL"
	CategoryPattern       Category = "PATTERN"
	CategoryState         Category = "STATE"
	CategoryNetwork       Category = "NETWORK"
)

// #endregion category

// #region severity
// Severity orders tracked errors. Only SeverityCritical triggers recovery.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the upper-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// #endregion severity

// #region taxonomy
var (
	// ErrValidation marks structurally missing or invalid input.
	ErrValidation = errors.New("validation error")
	// ErrTransientExternal marks a failed gateway call that may be retried.
	ErrTransientExternal = errors.New("transient external error")
	// ErrCriticalState marks metrics that could not be computed.
	ErrCriticalState = errors.New("critical state error")
	// ErrSaturation marks a full bounded store. Never fatal.
	ErrSaturation = errors.New("saturation")
	// ErrRecoveryExhausted is terminal: bounded recovery attempts ran out.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")
)

// Error carries a taxonomy kind together with the failing operation.
// errors.Is matches both the kind and the wrapped cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds an *Error of the given kind.
func E(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validationf builds an ErrValidation error with a formatted cause.
func Validationf(op, format string, args ...any) error {
	return E(ErrValidation, op, fmt.Errorf(format, args...))
}

// #endregion taxonomy

// #region record
// Context holds arbitrary diagnostic fields attached to a tracked error.
type Context map[string]any

// Record is one tracked error.
type Record struct {
	ID        string
	Category  Category
	Severity  Severity
	Message   string
	Err       error
	Context   Context
	Timestamp time.Time
}

// #endregion record

// #region collaborators
// Sink receives every tracked error. Storage and format are the sink's concern.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Subscriber is notified synchronously for every tracked error.
type Subscriber func(rec Record)

// RecoveryAction runs the category-specific recovery for a critical error.
type RecoveryAction func(ctx context.Context, rec Record) error

// EscalationHandler is called once per escalation with the triggering record.
type EscalationHandler func(category Category, rec Record)

// #endregion collaborators
