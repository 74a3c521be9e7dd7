// Package errors defines the HTTP error envelope used by the admin server.
//
// Every non-2xx response carries the same JSON shape so operators and
// tooling can parse failures uniformly.
package errors

import (
	"encoding/json"
	"net/http"
)

// Stable error codes carried in HTTP error responses.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeServiceUnavail   = "SERVICE_UNAVAILABLE"
	CodeValidationError  = "VALIDATION_ERROR"
)

// HTTPErrorResponse is the JSON envelope for error responses.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError is the error payload inside an HTTPErrorResponse.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes an error envelope with the given status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetails(w, status, code, message, nil)
}

// WriteErrorDetails writes an error envelope including structured details.
func WriteErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// NotFoundHandler responds with the standard NOT_FOUND envelope.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, CodeNotFound, "resource not found: "+r.URL.Path)
}

// MethodNotAllowedHandler responds with the standard METHOD_NOT_ALLOWED
// envelope.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" is not allowed for "+r.URL.Path)
}
