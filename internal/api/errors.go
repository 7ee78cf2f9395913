// Package api provides HTTP handlers and middleware for the flagship feature flag service.
// It includes structured error responses, authentication, rate limiting, and RESTful endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode represents machine-readable error codes for API responses.
// These codes allow clients to programmatically handle different error scenarios.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR" // Unexpected server error
	ErrCodeInvalidJSON  ErrorCode = "INVALID_JSON"   // JSON parsing failed
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"  // Required field missing
)

// ErrorResponse represents a structured API error response.
// It provides both human-readable messages and machine-readable codes.
//
// Example JSON response:
//
//	{
//	  "error": "Bad Request",
//	  "message": "invalid JSON: unexpected end of input",
//	  "code": "INVALID_JSON",
//	  "request_id": "abc123"
//	}
type ErrorResponse struct {
	Error     string    `json:"error"`                 // HTTP status text (e.g., "Bad Request")
	Message   string    `json:"message"`               // Human-readable error description
	Code      ErrorCode `json:"code"`                  // Machine-readable error code
	RequestID string    `json:"request_id,omitempty"`  // Request ID for debugging/tracing
}

// NewErrorResponse creates a new error response with the given status code, error code, and message.
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// writeErrorResponse writes a structured error response to the HTTP response writer.
// It automatically includes the request ID from chi middleware if available.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errResp *ErrorResponse) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		errResp.RequestID = requestID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// BadRequestError creates a generic bad request error response.
//
// Usage:
//
//	BadRequestError(w, r, ErrCodeInvalidJSON, "Request body is not valid JSON")
func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	errResp := NewErrorResponse(http.StatusBadRequest, code, message)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// InternalError creates an internal server error (500) response.
//
// Usage:
//
//	InternalError(w, r, "failed to encode flag data")
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	errResp := NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, message)
	writeErrorResponse(w, r, http.StatusInternalServerError, errResp)
}
