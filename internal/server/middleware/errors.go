// Package middleware provides the admin server's HTTP middleware chain.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/hpcforge/simrun/internal/errors"
	"github.com/hpcforge/simrun/internal/observability"
)

// ErrorResponse is the JSON envelope written for middleware-level failures.
type ErrorResponse = apperrors.HTTPErrorResponse

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID attaches a request id to the request context, honoring an
// incoming X-Request-ID header and generating one otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id from the context, if any.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Recovery converts handler panics into 500 responses with the standard
// error envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			observability.Logger("server").Error("handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path))

			writeErrorResponse(w, apperrors.HTTPError{
				Code:      apperrors.CodeInternalError,
				Message:   fmt.Sprintf("panic: %v", rec),
				RequestID: GetRequestID(r.Context()),
			}, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

func writeErrorResponse(w http.ResponseWriter, httpErr apperrors.HTTPError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: httpErr})
}
