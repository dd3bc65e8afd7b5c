package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"prdigest/server/internal/observability"
)

// Recovery is HTTP middleware that recovers from panics.
// It logs the stack trace and returns a 500 Internal Server Error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				observability.L(r.Context()).Error("panic recovered",
					zap.Any("panic", err),
					zap.ByteString("stack", debug.Stack()),
				)

				// Log to Loki for alerting
				requestID := GetRequestID(r.Context())
				userID := ""
				if authCtx := GetAuthContext(r.Context()); authCtx != nil {
					userID = authCtx.UserID
				}
				observability.LogSecurityEvent(requestID, userID, "panic_recovered", map[string]any{
					"error": fmt.Sprintf("%v", err),
				})

				WriteJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
