package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

var (
	// ErrNotFound marks missing business data (e.g. an agent that was deleted).
	ErrNotFound = stderrors.New("not found")
	// ErrContractViolation marks a payload missing a field a stage requires.
	ErrContractViolation = stderrors.New("contract violation")
	// ErrMalformedOutput marks model output that failed structured parsing after repair.
	ErrMalformedOutput = stderrors.New("malformed model output")
	// ErrFatal marks any other business failure that retrying cannot fix.
	ErrFatal = stderrors.New("fatal")
	// ErrPersistence marks a failed durable write; retrying is safe.
	ErrPersistence = stderrors.New("persistence failure")
	// ErrDimensionMismatch is returned when comparing vectors of different length.
	ErrDimensionMismatch = stderrors.New("dimension mismatch")
	// ErrCanceled marks work skipped because its pipeline run was canceled.
	ErrCanceled = stderrors.New("pipeline canceled")
	// ErrUnauthorized is returned by the HTTP auth layer.
	ErrUnauthorized = stderrors.New("unauthorized")
)

// Class is the retry decision for a failed stage.
type Class int

const (
	Retryable Class = iota
	Fatal
)

func (c Class) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "retryable"
}

// TransientError wraps a provider failure (network, timeout, rate limit).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transient: %v", e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient tags err as a retryable provider failure. nil stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// Persistence wraps a storage error so it classifies as retryable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Contract builds a contract violation naming the missing fields.
func Contract(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// Classify decides whether a stage failure is retried. Transient provider
// errors, persistence failures and anything unrecognised are retried; the
// queue's attempt cap bounds them.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Retryable
	case stderrors.Is(err, ErrContractViolation),
		stderrors.Is(err, ErrMalformedOutput),
		stderrors.Is(err, ErrNotFound),
		stderrors.Is(err, ErrFatal),
		stderrors.Is(err, ErrCanceled):
		return Fatal
	}
	return Retryable
}

// Reason codes name a failure for status subscribers without exposing the
// underlying error text.
const (
	ReasonInvalidInput    = "invalid_input"
	ReasonMalformedOutput = "malformed_output"
	ReasonNotFound        = "not_found"
	ReasonCanceled        = "canceled"
	ReasonStorage         = "storage"
	ReasonTimeout         = "timeout"
	ReasonProvider        = "provider"
	ReasonInternal        = "internal"
)

var reasonText = map[string]string{
	ReasonInvalidInput:    "the request is missing or has invalid fields",
	ReasonMalformedOutput: "the model returned output that could not be parsed",
	ReasonNotFound:        "a referenced record no longer exists",
	ReasonCanceled:        "the pipeline was canceled",
	ReasonStorage:         "the result could not be saved",
	ReasonTimeout:         "the stage timed out",
	ReasonProvider:        "the model provider is unavailable",
	ReasonInternal:        "an unexpected error occurred",
}

// Reason maps err to its reason code.
func Reason(err error) string {
	var transient *TransientError
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrCanceled):
		return ReasonCanceled
	case stderrors.Is(err, ErrContractViolation):
		return ReasonInvalidInput
	case stderrors.Is(err, ErrMalformedOutput):
		return ReasonMalformedOutput
	case stderrors.Is(err, ErrNotFound):
		return ReasonNotFound
	case stderrors.Is(err, ErrPersistence):
		return ReasonStorage
	case stderrors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case stderrors.As(err, &transient):
		return ReasonProvider
	}
	return ReasonInternal
}

// Describe returns the human message for a reason code. Unknown codes read
// as an unexpected error.
func Describe(reason string) string {
	if text, ok := reasonText[reason]; ok {
		return text
	}
	return reasonText[ReasonInternal]
}

// Is and As re-export the standard helpers so callers can import a single
// errors package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
