package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"turtlerace/internal/bus"
	"turtlerace/internal/leaderboard"
	"turtlerace/internal/orchestrator"
)

// StateProvider is the orchestrator as seen by the /api/state diagnostic
// endpoint: just enough to report lifecycle state, never roster or
// history data (the spec's Non-goals exclude a REST roster/history API -
// this is read-only operational visibility, not that API).
type StateProvider interface {
	State() orchestrator.State
}

// Bus is the subset of *bus.Bus the router needs: enough to upgrade a
// WebSocket request and to report a session count for health checks.
type Bus interface {
	ServeWS(w http.ResponseWriter, r *http.Request, handler bus.CommandHandler, perConnLimiter *rate.Limiter)
	Count() int
}

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection and testability: NewRouter
// opens no listeners, so it is safe to drive with httptest.NewServer.
type RouterConfig struct {
	// Bus is the Connection Bus the /ws/race route upgrades into.
	Bus Bus

	// Handler wires client commands from every session back to the
	// orchestrator.
	Handler bus.CommandHandler

	// PerMessageRate and PerMessageBurst bound how many client control
	// messages a single session may send per second (spec's bad_request
	// flood protection); zero disables the per-message limiter.
	PerMessageRate  rate.Limit
	PerMessageBurst int

	// RateLimiter is an optional pre-configured HTTP rate limiter. If
	// nil, one is built from RateLimitConfig (or DefaultRateLimitConfig).
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is the allowed Origin list for the plain HTTP surface.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware, useful for
	// benchmarks and quiet test output.
	DisableLogging bool

	// Orchestrator and Standings back the read-only /api/state diagnostic
	// endpoint. Both are optional; if either is nil the endpoint reports
	// what it can.
	Orchestrator StateProvider
	Standings    *leaderboard.Standings
}

// NewRouter constructs the HTTP router with its full middleware stack.
// It opens no listeners. When cfg.RateLimiter is nil, the limiter it
// builds starts its own cleanup goroutine.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		limitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			limitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(limitCfg)
	}
	r.Use(rateLimiter.Middleware)
	r.Use(metricsMiddleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/healthz", handleHealthz(cfg.Bus))
	r.Get("/api/state", handleState(cfg.Orchestrator, cfg.Standings))

	r.Get("/ws/race", func(w http.ResponseWriter, req *http.Request) {
		var limiter *rate.Limiter
		if cfg.PerMessageRate > 0 {
			limiter = rate.NewLimiter(cfg.PerMessageRate, cfg.PerMessageBurst)
		}
		cfg.Bus.ServeWS(w, req, cfg.Handler, limiter)
	})

	return r
}

func handleHealthz(b Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(struct {
			Status   string `json:"status"`
			Sessions int    `json:"sessions"`
		}{Status: "ok", Sessions: b.Count()})
	}
}

// handleState serves a read-only operational snapshot: lifecycle state
// and the live (not finish-only) standings view. This is diagnostic only
// - it is not the roster/history REST API the spec's Non-goals exclude.
func handleState(orch StateProvider, standings *leaderboard.Standings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			State     string                 `json:"state"`
			Standings []leaderboard.Standing `json:"standings,omitempty"`
		}{State: "unknown"}

		if orch != nil {
			resp.State = orch.State().String()
		}
		if standings != nil {
			resp.Standings = standings.Top(50)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		RecordRequest(r.Method, r.URL.Path, time.Since(start))
	})
}
