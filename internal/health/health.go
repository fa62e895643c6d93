// Package health serves the liveness and readiness probes mounted on the
// copilot's metrics listener. Liveness is trivial: a process that answers
// HTTP is alive. Readiness reflects the collaborators a useful copilot
// depends on, one verdict per check, so an operator can tell a dead
// knowledge store from a stalled game-state tracker at a glance.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 3 * time.Second

// Check probes one dependency the copilot needs to answer well. Probe
// returns nil while the dependency is usable and must respect ctx.
type Check struct {
	// Name keys the verdict in the response body (e.g. "postgres",
	// "tracker").
	Name string

	Probe func(ctx context.Context) error
}

// Ping adapts a connection-style ping (e.g. pgxpool.Pool.Ping) into a Check.
func Ping(name string, ping func(context.Context) error) Check {
	return Check{Name: name, Probe: ping}
}

// Staleness builds a Check over a timestamp source that fails when the
// newest timestamp is older than maxAge, or when nothing has been published
// yet. The tracker wires its snapshot age through this: a stalled refresh
// loop means answers are grounded on an old screen.
func Staleness(name string, maxAge time.Duration, last func() time.Time) Check {
	return Check{Name: name, Probe: func(context.Context) error {
		t := last()
		if t.IsZero() {
			return errors.New("no update yet")
		}
		if age := time.Since(t); age > maxAge {
			return fmt.Errorf("last update %s ago", age.Round(time.Second))
		}
		return nil
	}}
}

// verdict is the JSON body of both probes.
type verdict struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers /healthz and /readyz. The check list is fixed at
// construction; probes run sequentially per request.
type Handler struct {
	checks []Check
}

// New copies the checks into a Handler.
func New(checks ...Check) *Handler {
	h := &Handler{checks: make([]Check, len(checks))}
	copy(h.checks, checks)
	return h
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.live)
	mux.HandleFunc("GET /readyz", h.ready)
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, verdict{Status: "ok"})
}

// ready runs every check under its own probeTimeout slice of the request
// context and answers 503 when any fails. Failures carry the probe error so
// the response alone identifies the broken dependency.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	v := verdict{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			v.Checks[c.Name] = "fail: " + err.Error()
			v.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			v.Checks[c.Name] = "ok"
		}
	}

	respond(w, status, v)
}

func respond(w http.ResponseWriter, status int, v verdict) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
