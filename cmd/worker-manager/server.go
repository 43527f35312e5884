package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoice-workers/internal/polling"
	"invoice-workers/internal/registry"
)

// HealthChecker is satisfied by *camunda.Client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type statusDeps struct {
	Broker        HealthChecker
	Registry      func(context.Context) registry.Status
	PollingStatus func() polling.Status
	TaskTypes     func() []string
}

func newStatusMux(deps statusDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		taskTypes := deps.TaskTypes()
		sort.Strings(taskTypes)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := deps.Broker.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ready",
			"workers": taskTypes,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/registry/status", func(w http.ResponseWriter, r *http.Request) {
		status := deps.Registry(r.Context())
		code := http.StatusOK
		if !status.IsValid {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("/polling/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.PollingStatus())
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
