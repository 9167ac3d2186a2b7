// Package health aggregates the gateway's dependency probes for the
// health endpoints.
//
// The gateway has exactly two dependencies worth probing: the legacy PHP
// backend and the optional reporting database. Probes run on demand when
// the dashboard or an orchestrator asks; there is no background polling.
// Reachability is the bar, not correctness — a backend that answers the
// probe command with a refusal is still up.
package health

import (
	"context"
	"sync"
)

// Status is the outcome of probing one dependency.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Healthy builds a passing status.
func Healthy(name string) Status {
	return Status{Name: name, Healthy: true}
}

// Unhealthy builds a failing status with a short operator-facing detail.
func Unhealthy(name, detail string) Status {
	return Status{Name: name, Healthy: false, Detail: detail}
}

// Summary renders the status the way the health endpoint reports it.
func (s Status) Summary() string {
	if s.Healthy {
		return "healthy"
	}
	if s.Detail == "" {
		return "unhealthy"
	}
	return "unhealthy: " + s.Detail
}

// Checker probes one dependency. It must honor ctx; the health endpoint
// runs checkers under a short deadline so a hung backend cannot hang the
// probe itself.
type Checker func(ctx context.Context) Status

// Registry holds the gateway's named dependency checkers.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named dependency checker. Registration order is the
// order checks run and report in.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll probes every registered dependency sequentially and reports
// whether all of them passed.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// Summarize flattens probe results into the check map served at /health.
func Summarize(statuses []Status) map[string]string {
	out := make(map[string]string, len(statuses))
	for _, st := range statuses {
		out[st.Name] = st.Summary()
	}
	return out
}
