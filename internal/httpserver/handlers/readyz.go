package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

const checkTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Reason string            `json:"reason,omitempty"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Readyz returns 503 while shutting down or when a backing service does
// not answer its ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ShuttingDown != nil && d.ShuttingDown.Load() {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Reason: "shutting down"})
			return
		}

		failed := runChecks(r.Context(), d.Checks)
		if len(failed) > 0 {
			for name, msg := range failed {
				d.Logger.Warn("readiness check failed", logger.String("check", name), logger.String("error", msg))
			}
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Failed: failed})
			return
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}

// runChecks pings each dependency and returns the failures by name.
func runChecks(ctx context.Context, checks []deps.Check) map[string]string {
	var failed map[string]string
	for _, c := range checks {
		if err := ping(ctx, c); err != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[c.Name] = err.Error()
		}
	}
	return failed
}

func ping(ctx context.Context, c deps.Check) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return c.Ping(ctx)
}
