package dto

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries the error classification the client can act on. Details
// holds the provider's itemized validation messages when present, and
// RetryAfterSeconds the wait hint for rate-limited requests.
type ErrorInfo struct {
	Code              string   `json:"code"`
	Message           string   `json:"message"`
	Details           []string `json:"details,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
	RequestID         string   `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response.
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response carrying the
// request ID for correlation with server logs.
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}
