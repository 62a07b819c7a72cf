package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"turtlerace/internal/orchestrator"
)

// SweepInterval is how often the Connection Bus sweeps unhealthy
// sessions once Server.Start launches its supervisor goroutine.
const SweepInterval = 5 * time.Second

// Server bundles the HTTP router with the orchestrator's driver loop and
// the bus's session sweeper into one process-lifecycle unit.
//
// IMPORTANT: background goroutines (the orchestrator driver, the bus
// sweeper) do NOT start until Start is called, so NewServer and Router
// stay safe to use from tests with httptest.NewServer.
type Server struct {
	router *chi.Mux
	http   *http.Server

	orch *orchestrator.Orchestrator
	bus  Bus
}

// NewServer builds a Server from an already-wired router, orchestrator,
// and bus. addr is the external listen address, e.g. ":8080".
func NewServer(router *chi.Mux, orch *orchestrator.Orchestrator, b Bus, addr string) *Server {
	return &Server{
		router: router,
		http:   &http.Server{Addr: addr, Handler: router},
		orch:   orch,
		bus:    b,
	}
}

// Router returns the HTTP handler, for use with httptest.NewServer.
func (s *Server) Router() http.Handler { return s.router }

// Start launches the orchestrator driver loop and bus sweeper, then
// blocks serving HTTP until ctx is cancelled or the listener fails. On
// ctx cancellation it gracefully shuts the HTTP server down.
func (s *Server) Start(ctx context.Context) error {
	go s.orch.Run(ctx)

	if sweeper, ok := s.bus.(interface {
		RunSweeper(context.Context, time.Duration)
	}); ok {
		go sweeper.RunSweeper(ctx, SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("race server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
