// Package api wires the race server's HTTP surface: the WebSocket upgrade
// route, health and metrics endpoints, and the supporting middleware
// stack. It intentionally knows nothing about engine internals - it talks
// to the orchestrator and bus only through the small interfaces they
// already export.
package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-session or per-turtle labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "race_tick_duration_seconds",
		Help:    "Time spent stepping the race engine one physics tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02},
	})

	broadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "race_broadcast_duration_seconds",
		Help:    "Time spent marshaling and fanning out one snapshot",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02},
	})

	sessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "race_bus_sessions",
		Help: "Currently attached WebSocket sessions",
	})

	raceState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "race_orchestrator_state",
		Help: "Orchestrator lifecycle state: 0=idle 1=running 2=finished",
	})

	clockLagTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_clock_lag_total",
		Help: "Times the orchestrator dropped accumulated time past MaxCatchupTicks",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "race_connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "ws_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "race_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_websocket_messages_total",
		Help: "Total WebSocket frames enqueued for delivery",
	})
)

// ObservabilityConfig configures the internal debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // must stay loopback-only in production
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe, loopback-only defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the pprof/metrics/health server. It binds to
// loopback only unless ALLOW_DEBUG_EXTERNAL=true is explicitly set -
// pprof exposed to the internet is a DoS vector in its own right.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("debug server forced to loopback for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records one engine Step's wall-clock cost.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// RecordBroadcast records one Broadcast call's wall-clock cost.
func RecordBroadcast(d time.Duration) { broadcastDuration.Observe(d.Seconds()) }

// UpdateSessionCount sets the attached-session gauge.
func UpdateSessionCount(n int) { sessionCount.Set(float64(n)) }

// UpdateRaceState sets the orchestrator-state gauge from its String form.
func UpdateRaceState(state string) {
	switch state {
	case "running":
		raceState.Set(1)
	case "finished":
		raceState.Set(2)
	default:
		raceState.Set(0)
	}
}

// IncrementClockLag counts one clock_lag taxonomy event.
func IncrementClockLag() { clockLagTotal.Inc() }

// RecordConnectionRejected increments the rejection counter. reason must
// be one of "rate_limit", "origin", "ws_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records one HTTP request's latency.
func RecordRequest(method, endpoint string, d time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// IncrementWSMessages counts one outbound WebSocket frame.
func IncrementWSMessages() { wsMessagesTotal.Inc() }
