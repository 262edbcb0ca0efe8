package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/orgauth/internal/auth/cache"
	"github.com/aussiebroadwan/orgauth/internal/auth/store"
	"github.com/aussiebroadwan/orgauth/pkg/httpx"
)

// LivezHandler always reports ok while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler checks the critical dependencies. The cache falling back
// to its in-process store degrades the report without failing it; the
// database going away fails it.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	kv *cache.Fallback,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if kv.Degraded() {
			checks["cache"] = "degraded: serving from in-process store"
			overallStatus = "degraded"
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
