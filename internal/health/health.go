// Package health serves the liveness and readiness probes.
//
//   - /healthz — liveness; answers 200 whenever the process can serve HTTP.
//   - /readyz  — readiness; answers 200 only while every registered
//     dependency probe passes, 503 otherwise.
//
// Both respond with a JSON body carrying a "status" field and, for
// readiness, a "checks" map with one entry per probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds a single dependency probe.
const probeTimeout = 5 * time.Second

// Checker is a named dependency probe. Check returns nil while the
// dependency is usable and must respect context cancellation.
type Checker struct {
	// Name keys this probe in the readiness response ("database", "model").
	Name string

	Check func(ctx context.Context) error
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The checker set is fixed at
// construction and the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a [Handler] over the given checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz always reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, probeReport{Status: "ok"})
}

// Readyz runs every probe concurrently, each under its own [probeTimeout],
// and reports 503 as soon as any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]error, len(h.checkers))

	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			outcomes[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	report := probeReport{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	status := http.StatusOK
	for i, c := range h.checkers {
		if err := outcomes[i]; err != nil {
			report.Checks[c.Name] = err.Error()
			report.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			report.Checks[c.Name] = "ok"
		}
	}

	writeReport(w, status, report)
}

func writeReport(w http.ResponseWriter, status int, report probeReport) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
