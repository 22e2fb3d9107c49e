package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyCheckTimeout = 2 * time.Second

type readyReport struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// NewBaseMuxWithReady returns a mux serving /healthz (liveness) and /readyz,
// which runs every check with its own timeout and reports failures by name.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, http.StatusOK, readyReport{Status: "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failures := runChecks(r.Context(), checks)
		if len(failures) > 0 {
			writeReport(w, http.StatusServiceUnavailable, readyReport{Status: "unavailable", Failures: failures})
			return
		}
		writeReport(w, http.StatusOK, readyReport{Status: "ok"})
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) map[string]string {
	var failures map[string]string
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
		err := check.Check(cctx)
		cancel()
		if err == nil {
			continue
		}
		name := check.Name
		if name == "" {
			name = "dependency"
		}
		if failures == nil {
			failures = map[string]string{}
		}
		failures[name] = err.Error()
	}
	return failures
}

func writeReport(w http.ResponseWriter, status int, rep readyReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
