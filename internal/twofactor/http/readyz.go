package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/twofactorsdk"
)

// ReadyzHandler answers 503 while the attribute store or the scratchpad is
// unreachable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	sp scratchpad.Scratchpad,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &twofactorsdk.HealthChecks{
			Store:      "ok",
			Scratchpad: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := sp.Ping(r.Context()); err != nil {
			checks.Scratchpad = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, twofactorsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
