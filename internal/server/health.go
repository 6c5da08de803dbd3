package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readinessTimeout bounds the storage check so a hung database does not
// hang the probe.
const readinessTimeout = 2 * time.Second

// health is the liveness probe for Docker/Kubernetes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, slog.Default())
}

// readiness returns the readiness probe handler. With a pool configured
// it verifies the database is reachable; without one it only reports the
// process as up.
func readiness(pool Pinger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "database unreachable",
			}, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	})
}
