// Package log provides an executor that logs the step it was given. Useful
// as a safe default for notification-style steps and in development.
package log

import (
	"context"
	"log/slog"
	"time"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Name() string {
	return "log"
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	if config == nil {
		config = map[string]any{}
	}

	return NewExecutor(config), nil
}

// Schema accepts an optional message and level; every other knob is refused.
func (f *Factory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:        "object",
		Title:       "Log",
		Description: "Logs the step's action and details at the given level.",
		Properties: map[string]*models.Property{
			"message": {
				Type:        "string",
				Description: "Message to log instead of the step's action text",
			},
			"level": {
				Type:        "string",
				Description: "Log level for the message",
				Default:     "info",
				Enum:        []any{"debug", "info", "warn", "error"},
			},
		},
	}
}

type Executor struct {
	message string
	level   string
}

func NewExecutor(config map[string]any) *Executor {
	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	if level == "" {
		level = "info"
	}

	return &Executor{message: message, level: level}
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "log", "workflow_id", req.Workflow.ID, "step_number", req.Step.StepNumber)

	message := e.message
	if message == "" {
		message = req.Step.Action
	}

	logger.Log(ctx, slogLevel(e.level), message,
		"details", req.Step.Details, "correlation_id", req.CorrelationID)

	return map[string]any{
		"message":   message,
		"level":     e.level,
		"logged_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
