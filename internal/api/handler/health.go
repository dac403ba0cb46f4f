package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const readyTimeout = time.Second

var errNoPool = errors.New("database pool not configured")

type dependency struct {
	name  string
	check func(context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthHandler exposes liveness and readiness checks. Redis is checked only
// when the deployment configures it.
type HealthHandler struct {
	deps []dependency
}

func NewHealthHandler(db *pgxpool.Pool, rdb redis.Cmdable) *HealthHandler {
	h := &HealthHandler{}
	h.deps = append(h.deps, dependency{name: "database", check: func(ctx context.Context) error {
		if db == nil {
			return errNoPool
		}
		return db.Ping(ctx)
	}})
	if rdb != nil {
		h.deps = append(h.deps, dependency{name: "redis", check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

// Live reports OK while the process serves requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every dependency check in parallel and fails on the first unhealthy
// dependency in registration order.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	results := make([]checkResult, len(h.deps))
	errs := make([]error, len(h.deps))
	var wg sync.WaitGroup
	for i, p := range h.deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			errs[i] = p.check(ctx)
			results[i] = checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if errs[i] != nil {
				results[i].Status = "unavailable"
			}
		}()
	}
	wg.Wait()

	checks := make(map[string]checkResult, len(h.deps))
	for i, p := range h.deps {
		if errs[i] != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/"+p.name+"-unavailable", p.name+" unavailable")
			return
		}
		checks[p.name] = results[i]
	}
	RespondJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
