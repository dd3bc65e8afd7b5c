package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// HealthChecker reports the state of a dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health serves GET /health. The memory store state decides between ok
// and degraded.
func Health(memory HealthChecker, instanceID, instanceRegion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Instance-ID", instanceID)
		w.Header().Set("X-Instance-Region", instanceRegion)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, memStatus, code := "ok", "ok", http.StatusOK
		if memory != nil {
			if err := memory.HealthCheck(ctx); err != nil {
				status, memStatus, code = "degraded", "unavailable", http.StatusServiceUnavailable
			}
		}

		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("status")
		e.Str(status)
		e.FieldStart("instance")
		e.Str(instanceID)
		e.FieldStart("region")
		e.Str(instanceRegion)
		e.FieldStart("memory")
		e.Str(memStatus)
		e.ObjEnd()

		w.WriteHeader(code)
		_, _ = w.Write(e.Bytes())
	}
}
