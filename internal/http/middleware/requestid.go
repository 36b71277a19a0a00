package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation identifier between the client,
// the access log, and the error envelope.
const RequestIDHeader = "X-Request-Id"

type contextKey string

const requestIDContextKey contextKey = "request_id"

// RequestID attaches a correlation identifier to every request. An
// identifier supplied by the client is kept so callers can trace a
// submission through the job pipeline; otherwise a fresh UUID is issued.
// The identifier is echoed back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request's correlation identifier, or "unknown"
// when called outside the middleware chain.
func GetRequestID(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContextKey).(string)
	if value == "" {
		return "unknown"
	}
	return value
}
