// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
)

// HealthStatus is the state reported by /healthz.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is one component's check outcome.
type HealthResult struct {
	Component string       `json:"component"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
}

// HealthChecker reports the health of one component.
type HealthChecker func(ctx context.Context) HealthResult

// healthRegistry runs registered checkers; overall status is the worst one.
type healthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

func (r *healthRegistry) register(name string, fn HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checkers == nil {
		r.checkers = make(map[string]HealthChecker)
	}
	r.checkers[name] = fn
}

func (r *healthRegistry) checkAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, fn := range r.checkers {
		checkers[name] = fn
	}
	r.mu.RUnlock()
	sort.Strings(names)

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		res := checkers[name](ctx)
		res.Component = name
		results = append(results, res)
		switch res.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}

// RegisterHealthCheck adds a component to /healthz.
func (h *Handler) RegisterHealthCheck(name string, fn HealthChecker) {
	h.health.register(name, fn)
}

type healthResponse struct {
	Status HealthStatus   `json:"status"`
	Checks []HealthResult `json:"checks"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	results, overall := h.health.checkAll(r.Context())
	status := http.StatusOK
	if overall == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: overall, Checks: results})
}
