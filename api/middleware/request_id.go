package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID reuses a caller supplied id or mints one, echoes it back and
// tags the request logger with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(reqID); err != nil {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), reqID)))
		})
	}
}
