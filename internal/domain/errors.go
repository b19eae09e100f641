package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies why an acquisition or analysis failed.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"
	KindTimeout            ErrorKind = "timeout"
	KindRateLimited        ErrorKind = "rate_limited"
	KindMalformedOutput    ErrorKind = "malformed_output"
	KindExternalFailure    ErrorKind = "external_failure"
	KindProductUnavailable ErrorKind = "product_unavailable"
)

var (
	// ErrInvalidInput is returned for missing, malformed or unsupported product URLs
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout is returned when an acquisition attempt exceeded its deadline
	ErrTimeout = errors.New("acquisition timed out")

	// ErrRateLimited is returned when the external source is throttling requests
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrMalformedOutput is returned when acquisition output cannot be parsed
	ErrMalformedOutput = errors.New("malformed acquisition output")

	// ErrExternalFailure is returned when the external acquisition exited abnormally
	ErrExternalFailure = errors.New("external acquisition failed")

	// ErrProductUnavailable is returned when no usable product data could be acquired
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

var sentinels = map[ErrorKind]error{
	KindInvalidInput:       ErrInvalidInput,
	KindTimeout:            ErrTimeout,
	KindRateLimited:        ErrRateLimited,
	KindMalformedOutput:    ErrMalformedOutput,
	KindExternalFailure:    ErrExternalFailure,
	KindProductUnavailable: ErrProductUnavailable,
}

// AcquisitionError is the failure half of an AcquisitionResult.
type AcquisitionError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// NewAcquisitionError builds an AcquisitionError of the given kind.
func NewAcquisitionError(kind ErrorKind, format string, args ...interface{}) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error for the error's kind.
func (e *AcquisitionError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf reports the kind of the outermost AcquisitionError in err's chain.
// Errors outside the taxonomy are reported as ExternalFailure.
func KindOf(err error) ErrorKind {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindExternalFailure
}

// Retryable reports whether the orchestrator may attempt the call again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimited, KindMalformedOutput, KindExternalFailure:
		return true
	default:
		return false
	}
}
