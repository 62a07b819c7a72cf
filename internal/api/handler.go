package api

import (
	"context"

	"turtlerace/internal/orchestrator"
)

// OrchestratorHandler adapts *orchestrator.Orchestrator to bus.CommandHandler,
// the only shape the Connection Bus needs to route client commands back
// into the driver loop.
type OrchestratorHandler struct {
	Orch *orchestrator.Orchestrator
}

func (h OrchestratorHandler) HandleStart(ctx context.Context) error {
	return h.Orch.Start(ctx)
}

func (h OrchestratorHandler) HandleStop(ctx context.Context) error {
	return h.Orch.Stop(ctx)
}

func (h OrchestratorHandler) HandleSpeed(ctx context.Context, value int) error {
	return h.Orch.SetSpeed(ctx, value)
}
