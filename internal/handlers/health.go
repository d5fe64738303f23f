package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"edurag/internal/contextutil"
	"edurag/internal/vectorstore"
)

const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"

	defaultHealthTimeout = 5 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// dependencyCheck checks one dependency the service cannot work without.
type dependencyCheck struct {
	name  string
	issue string
	check func(ctx context.Context) error
}

// HealthHandler reports whether the service dependencies are reachable and whether
// any answering backend is usable.
type HealthHandler struct {
	checks   []dependencyCheck
	backends func() []string
	timeout  time.Duration
}

// NewHealthHandler creates a new HealthHandler. checkCollection is looked up in the
// vector store to check it answers; it need not exist. backends lists the usable
// answering backends. db may be nil.
func NewHealthHandler(vectorStore vectorstore.VectorStore, db Pinger, checkCollection string, backends func() []string) *HealthHandler {
	checks := []dependencyCheck{{
		name:  "vector_store",
		issue: "vector_store_unavailable",
		check: func(ctx context.Context) error {
			_, err := vectorStore.CollectionExists(ctx, checkCollection)
			return err
		},
	}}
	if db != nil {
		checks = append(checks, dependencyCheck{
			name:  "database",
			issue: "database_unavailable",
			check: db.PingContext,
		})
	}
	return &HealthHandler{checks: checks, backends: backends, timeout: defaultHealthTimeout}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Backends that can answer questions
	Backends []string `json:"backends"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP runs every dependency check concurrently under one timeout.
//
// Returns 200 OK if healthy or degraded, 503 Service Unavailable if unhealthy.
//
// swagger:route GET /api/health healthCheck
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	errs := make([]error, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			errs[i] = c.check(checkCtx)
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    healthHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)+1),
		Backends:  []string{},
	}
	for i, c := range h.checks {
		if errs[i] == nil {
			resp.Checks[c.name] = "ok"
			continue
		}
		logger.WarnContext(ctx, "health check failed", "check", c.name, "error", errs[i])
		resp.Checks[c.name] = "error"
		resp.Issues = append(resp.Issues, c.issue)
		resp.Status = healthUnhealthy
	}

	if h.backends != nil {
		resp.Backends = append(resp.Backends, h.backends()...)
	}
	if len(resp.Backends) > 0 {
		resp.Checks["llm"] = "ok"
	} else {
		resp.Checks["llm"] = "error"
		resp.Issues = append(resp.Issues, "no_backend_configured")
		if resp.Status == healthHealthy {
			resp.Status = healthDegraded
		}
	}

	status := http.StatusOK
	if resp.Status == healthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(ctx, w, status, resp)
}
