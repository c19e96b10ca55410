package dto

import (
	"errors"
	"net/http"

	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
)

// General error codes for failures that never reach the accounting domain.
const (
	// ErrCodeInternal is used for unclassified server-side failures.
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests.
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when request body parsing fails.
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeUnauthorized is used when authentication is required but missing or invalid.
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeNotFound is used when a resource is not found.
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeRateLimited is used when the inbound rate limit is exceeded.
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps non-domain error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code, defaulting
// to 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// kindHTTPStatus maps accounting error kinds to HTTP status codes.
//
// Provider-side failures surface as 502: the request to this API was fine,
// the upstream provider was not. NOT_CONNECTED is a 409 rather than 404
// because the tenant resource exists, it is just in the wrong state for
// sync operations.
var kindHTTPStatus = map[accounting.ErrorKind]int{
	accounting.ErrorKindAuthentication:    http.StatusUnauthorized,
	accounting.ErrorKindValidation:        http.StatusBadRequest,
	accounting.ErrorKindRateLimit:         http.StatusTooManyRequests,
	accounting.ErrorKindServer:            http.StatusBadGateway,
	accounting.ErrorKindNetwork:           http.StatusBadGateway,
	accounting.ErrorKindRetriesExhausted:  http.StatusBadGateway,
	accounting.ErrorKindNotConnected:      http.StatusConflict,
	accounting.ErrorKindUnauthorizedState: http.StatusUnauthorized,
	accounting.ErrorKindUnknown:           http.StatusInternalServerError,
}

// DomainErrorStatus returns the HTTP status for a domain error kind.
func DomainErrorStatus(kind accounting.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromDomainError converts an accounting domain error into the response
// envelope's error info, preserving detail and the retry hint. Non-domain
// errors come back as an opaque internal error so provider internals never
// leak to clients.
func FromDomainError(err error, requestID string) (int, *ErrorInfo) {
	var domErr *accounting.Error
	if !errors.As(err, &domErr) {
		return http.StatusInternalServerError, &ErrorInfo{
			Code:      ErrCodeInternal,
			Message:   "An unexpected error occurred",
			RequestID: requestID,
		}
	}

	info := &ErrorInfo{
		Code:      string(domErr.Kind),
		Message:   domErr.Message,
		Details:   domErr.Detail,
		RequestID: requestID,
	}
	if domErr.RetryAfter > 0 {
		info.RetryAfterSeconds = int(domErr.RetryAfter.Seconds())
	}
	return DomainErrorStatus(domErr.Kind), info
}
