// Package handlers provides HTTP request handlers for the API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// APIError is the error envelope body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Error codes returned by the API.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            = "TIMEOUT"
)

// ErrorResponse wraps every error body as {"error": {...}}.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// RespondJSON writes data as JSON. A nil data writes headers only.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// RespondError writes the error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	respondAPIError(w, status, &APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *APIError) {
	RespondJSON(w, status, ErrorResponse{Error: apiErr})
}

// RespondBadRequest answers 400 for bodies that cannot be decoded.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// RespondValidationError answers 422 with the failed checks in details.
func RespondValidationError(w http.ResponseWriter, details any) {
	respondAPIError(w, http.StatusUnprocessableEntity, &APIError{
		Code:    ErrCodeValidation,
		Message: "Validation failed",
		Details: details,
	})
}

// RespondInternalError answers 500. An empty message gets a generic one.
func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, orDefault(message, "An internal error occurred"))
}

// RespondServiceUnavailable answers 503 for optional backends that are off.
func RespondServiceUnavailable(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, orDefault(message, "Service temporarily unavailable"))
}

// RespondSearchError maps a failed search to 504 when the search deadline
// expired and 500 otherwise. The message is the search error itself.
func RespondSearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		RespondError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
		return
	}
	RespondInternalError(w, err.Error())
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
