package accounting

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies a failure from the provider boundary. Whether an
// attempt may be retried is a pure function of the kind, never of the
// concrete error type that produced it.
type ErrorKind string

const (
	// ErrorKindAuthentication covers expired or invalid provider credentials (401/403).
	ErrorKindAuthentication ErrorKind = "AUTHENTICATION"
	// ErrorKindValidation covers malformed requests and business-rule violations (400/422).
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindRateLimit covers provider 429 responses and local gate rejections.
	ErrorKindRateLimit ErrorKind = "RATE_LIMIT"
	// ErrorKindServer covers provider-side 5xx failures.
	ErrorKindServer ErrorKind = "SERVER"
	// ErrorKindNetwork covers transient transport faults (reset/timeout/refused).
	ErrorKindNetwork ErrorKind = "NETWORK"
	// ErrorKindRetriesExhausted is the terminal wrapper after all attempts failed.
	ErrorKindRetriesExhausted ErrorKind = "RETRIES_EXHAUSTED"
	// ErrorKindNotConnected indicates no valid provider authorization for the tenant.
	ErrorKindNotConnected ErrorKind = "NOT_CONNECTED"
	// ErrorKindUnauthorizedState indicates an OAuth state token that failed to
	// decrypt, authenticate, or arrived past its max age.
	ErrorKindUnauthorizedState ErrorKind = "UNAUTHORIZED_STATE"
	// ErrorKindUnknown is the default for unclassified failures.
	ErrorKindUnknown ErrorKind = "UNKNOWN"
)

// Error is the domain error carried across the provider boundary. It holds
// the classification plus whatever structured detail the failure came with.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Detail carries the provider's structured validation messages, when present.
	Detail []string
	// RetryAfter is the provider (or limiter) supplied wait hint for rate limits.
	RetryAfter time.Duration
	// Attempts is the number of attempts consumed before a RETRIES_EXHAUSTED error.
	Attempts int

	cause error
}

func (e *Error) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Detail, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// NewAuthenticationError reports invalid or expired provider credentials.
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: ErrorKindAuthentication, Code: "AUTHENTICATION_FAILED", Message: message}
}

// NewValidationError reports a request the provider (or a local pre-condition)
// rejected as invalid. Detail keeps the provider's itemized messages.
func NewValidationError(message string, detail ...string) *Error {
	return &Error{Kind: ErrorKindValidation, Code: "VALIDATION_FAILED", Message: message, Detail: detail}
}

// NewRateLimitError reports an admission rejection carrying a wait hint.
func NewRateLimitError(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: ErrorKindRateLimit, Code: "RATE_LIMITED", Message: message, RetryAfter: retryAfter}
}

// NewServerError reports a provider-side failure.
func NewServerError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindServer, Code: "PROVIDER_SERVER_ERROR", Message: message, cause: cause}
}

// NewNetworkError reports a transient transport fault.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindNetwork, Code: "NETWORK_ERROR", Message: message, cause: cause}
}

// NewRetriesExhaustedError wraps the last failure once all attempts are spent.
func NewRetriesExhaustedError(attempts int, cause error) *Error {
	return &Error{
		Kind:     ErrorKindRetriesExhausted,
		Code:     "RETRIES_EXHAUSTED",
		Message:  fmt.Sprintf("operation failed after %d attempts", attempts),
		Attempts: attempts,
		cause:    cause,
	}
}

// NewNotConnectedError reports that a tenant has no provider authorization.
func NewNotConnectedError(tenantID uuid.UUID) *Error {
	return &Error{
		Kind:    ErrorKindNotConnected,
		Code:    "NOT_CONNECTED",
		Message: fmt.Sprintf("tenant %s is not connected to an accounting provider", tenantID),
	}
}

// NewUnauthorizedStateError reports an OAuth state token that could not be
// trusted. Callers must not be told which check failed beyond expiry.
func NewUnauthorizedStateError(message string) *Error {
	return &Error{Kind: ErrorKindUnauthorizedState, Code: "UNAUTHORIZED_STATE", Message: message}
}

// KindOf classifies an arbitrary error. Domain errors carry their own kind;
// raw transport faults are recognized as NETWORK; everything else, including
// context cancellation, is UNKNOWN and therefore not retried.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindNetwork
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return ErrorKindNetwork
	}

	return ErrorKindUnknown
}

// IsRetryable reports whether an attempt that failed with the given kind may
// be repeated. Unknown kinds default to non-retryable so bugs are surfaced
// instead of masked by retries.
func IsRetryable(kind ErrorKind) bool {
	switch kind {
	case ErrorKindRateLimit, ErrorKindServer, ErrorKindNetwork:
		return true
	default:
		return false
	}
}
