// Package protocol defines the interfaces pluggable components must satisfy.
package protocol

import (
	"context"
	"log/slog"

	"github.com/verdantlabs/greenlight/pkg/models"
)

// ExecutionRequest carries one step and its shared context to an executor.
type ExecutionRequest struct {
	Workflow      *models.Workflow
	Step          models.Step
	CorrelationID string
}

// Executor performs one category of step. The engine treats all executors
// uniformly: a call either returns a result payload or fails.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest, logger *slog.Logger) (map[string]any, error)
}

// ExecutorFactory creates executors from step parameters and exposes the
// executor's registered name and parameter schema.
type ExecutorFactory interface {
	Create(config map[string]any) (Executor, error)
	Name() string
	Schema() *models.JSONSchema
}
