// Package execution runs the steps of an approved workflow. Steps execute
// sequentially in step-number order; a failed step is recorded and execution
// continues with the next one. The workflow always ends EXECUTED, with the
// aggregate record distinguishing a clean run from a partial failure.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/verdantlabs/greenlight/pkg/eventbus"
	"github.com/verdantlabs/greenlight/pkg/events"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/otelhelper"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/protocol"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
)

// DefaultConfidenceThreshold is the minimum oracle confidence accepted when
// synthesizing a step for a workflow without explicit steps.
const DefaultConfidenceThreshold = 0.7

// ErrLowConfidence indicates the oracle's executor choice fell below the
// configured confidence threshold. Nothing was executed.
var ErrLowConfidence = errors.New("executor choice confidence below threshold")

type Config struct {
	// ConfidenceThreshold rejects synthesized steps the oracle is not sure
	// about. Zero means DefaultConfidenceThreshold.
	ConfidenceThreshold float64

	// Tracer is optional; nil disables tracing.
	Tracer trace.Tracer
}

type Engine struct {
	store               *store.Store
	oracle              oracle.Oracle
	registry            *registry.Registry
	eventBus            eventbus.EventPublisher
	tracer              trace.Tracer
	confidenceThreshold float64
	logger              *slog.Logger
}

func NewEngine(s *store.Store, o oracle.Oracle, r *registry.Registry, eventBus eventbus.EventPublisher, logger *slog.Logger, cfg Config) *Engine {
	threshold := cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("greenlight")
	}

	return &Engine{
		store:               s,
		oracle:              o,
		registry:            r,
		eventBus:            eventBus,
		tracer:              tracer,
		confidenceThreshold: threshold,
		logger:              logger.With("module", "execution_engine"),
	}
}

// StepResult is the outcome of one step attempt.
type StepResult struct {
	StepNumber   int                    `json:"step_number"`
	ExecutorName string                 `json:"executor_name"`
	Status       models.ExecutionStatus `json:"status"`
	Payload      map[string]any         `json:"payload,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Duration     time.Duration          `json:"duration"`
}

// Summary aggregates one workflow execution.
type Summary struct {
	WorkflowID  string                 `json:"workflow_id"`
	Total       int                    `json:"total"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	Status      models.ExecutionStatus `json:"status"`
	StepResults []StepResult           `json:"step_results"`
	Duration    time.Duration          `json:"duration"`
}

// ExecuteWorkflow runs every step of the workflow and finalizes it. A
// non-existent or non-approved workflow fails before any executor is
// invoked. Failed steps are recorded and skipped over, never retried here;
// the workflow transitions to EXECUTED regardless, because EXECUTED means
// "attempted and completed", not "every step succeeded".
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID, executedBy string, oc oracle.Context) (*Summary, error) {
	workflow, err := e.store.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.StatusAutoApproved {
		return nil, &persistence.TransitionError{WorkflowID: workflowID, From: workflow.Status, To: models.StatusExecuted}
	}

	steps, err := e.resolveSteps(ctx, workflow, oc)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New().String()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.WorkflowTypeKey, workflow.Type.String()),
		attribute.String(otelhelper.RiskLevelKey, workflow.RiskLevel.String()),
		attribute.String(otelhelper.CorrelationIDKey, correlationID),
	)
	defer span.End()

	e.logger.InfoContext(ctx, "Executing workflow",
		"workflow_id", workflowID, "steps", len(steps), "correlation_id", correlationID)

	started := time.Now().UTC()
	summary := &Summary{
		WorkflowID:  workflowID,
		Total:       len(steps),
		Status:      models.ExecutionStatusExecuted,
		StepResults: make([]StepResult, 0, len(steps)),
	}

	for _, step := range steps {
		result := e.executeStep(ctx, workflow, step, executedBy, correlationID)

		if result.Status == models.ExecutionStatusExecuted {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		summary.StepResults = append(summary.StepResults, result)
	}

	if summary.Failed > 0 {
		summary.Status = models.ExecutionStatusPartialFailure
		span.SetStatus(codes.Error, "partial failure")
	}

	summary.Duration = time.Since(started)

	if err := e.finalize(ctx, workflow, summary, executedBy, correlationID); err != nil {
		return nil, err
	}

	e.publish(ctx, workflowID, events.WorkflowExecuted{
		BaseEvent:      events.NewBaseEvent(events.WorkflowExecutedEvent, workflowID),
		ExecutedBy:     executedBy,
		AggregateState: summary.Status,
		StepsTotal:     summary.Total,
		StepsSucceeded: summary.Succeeded,
		StepsFailed:    summary.Failed,
		DurationMs:     summary.Duration.Milliseconds(),
	})

	e.logger.InfoContext(ctx, "Workflow execution finished",
		"workflow_id", workflowID, "status", summary.Status,
		"succeeded", summary.Succeeded, "failed", summary.Failed)

	return summary, nil
}

// resolveSteps returns the workflow's steps in ascending step-number order.
// When the workflow carries no explicit steps, exactly one is synthesized
// from the oracle's executor choice; low confidence fails the call before
// any executor runs.
func (e *Engine) resolveSteps(ctx context.Context, workflow *models.Workflow, oc oracle.Context) ([]models.Step, error) {
	if len(workflow.Data.Steps) > 0 {
		steps := make([]models.Step, len(workflow.Data.Steps))
		copy(steps, workflow.Data.Steps)

		sort.Slice(steps, func(i, j int) bool {
			return steps[i].StepNumber < steps[j].StepNumber
		})

		return steps, nil
	}

	choice, err := e.oracle.ChooseExecutorAndParameters(ctx, workflow, oc)
	if err != nil {
		return nil, oracle.NewOracleError("ChooseExecutorAndParameters", workflow.ID, err)
	}

	if choice.Confidence < e.confidenceThreshold {
		return nil, fmt.Errorf("workflow %s: %w: %.2f < %.2f",
			workflow.ID, ErrLowConfidence, choice.Confidence, e.confidenceThreshold)
	}

	e.logger.InfoContext(ctx, "Synthesized single step from executor choice",
		"workflow_id", workflow.ID, "executor", choice.ExecutorName, "confidence", choice.Confidence)

	return []models.Step{{
		StepNumber: 1,
		Kind:       models.StepKindAction,
		Action:     workflow.Data.ActionDescription,
		ToolNeeded: choice.ExecutorName,
		Details:    choice.Reasoning,
		Parameters: choice.Parameters,
	}}, nil
}

// executeStep runs one step and records its outcome. Any failure, including
// an unknown executor name or schema-invalid parameters, is scoped to this
// step.
func (e *Engine) executeStep(ctx context.Context, workflow *models.Workflow, step models.Step, executedBy, correlationID string) StepResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.Int(otelhelper.StepNumberKey, step.StepNumber),
		attribute.String(otelhelper.ExecutorNameKey, step.ToolNeeded),
	)
	defer span.End()

	started := time.Now().UTC()

	payload, err := e.runStep(ctx, workflow, step, correlationID)
	duration := time.Since(started)

	result := StepResult{
		StepNumber:   step.StepNumber,
		ExecutorName: step.ToolNeeded,
		Status:       models.ExecutionStatusExecuted,
		Payload:      payload,
		Duration:     duration,
	}

	if err != nil {
		result.Status = models.ExecutionStatusFailed
		result.ErrorMessage = err.Error()

		span.SetStatus(codes.Error, err.Error())

		e.logger.ErrorContext(ctx, "Step execution failed",
			"workflow_id", workflow.ID, "step_number", step.StepNumber,
			"executor", step.ToolNeeded, "error", err)
	}

	e.saveRecord(ctx, &models.ExecutionRecord{
		WorkflowID:   workflow.ID,
		StepNumber:   &step.StepNumber,
		ExecutorName: step.ToolNeeded,
		Payload:      payload,
		Status:       result.Status,
		ExecutedAt:   started,
		ExecutedBy:   executedBy,
		Duration:     duration,
		ErrorMessage: result.ErrorMessage,
	})

	e.publish(ctx, workflow.ID, events.WorkflowStepCompleted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowStepCompletedEvent, workflow.ID),
		StepNumber:   step.StepNumber,
		ExecutorName: step.ToolNeeded,
		Status:       result.Status,
		DurationMs:   duration.Milliseconds(),
		ErrorMessage: result.ErrorMessage,
	})

	return result
}

// runStep resolves, validates, and invokes the executor for one step.
func (e *Engine) runStep(ctx context.Context, workflow *models.Workflow, step models.Step, correlationID string) (map[string]any, error) {
	if err := e.registry.ValidateStepParameters(step.ToolNeeded, step.Parameters); err != nil {
		return nil, err
	}

	executor, err := e.registry.CreateExecutor(step.ToolNeeded, step.Parameters)
	if err != nil {
		return nil, err
	}

	payload, err := executor.Execute(ctx, protocolRequest(workflow, step, correlationID), e.logger)
	if err != nil {
		return nil, &oracle.CollaboratorError{
			Collaborator: step.ToolNeeded,
			Op:           "Execute",
			WorkflowID:   workflow.ID,
			Err:          err,
		}
	}

	return payload, nil
}

// finalize writes the whole-workflow aggregate record and moves the workflow
// to EXECUTED with its execution results.
func (e *Engine) finalize(ctx context.Context, workflow *models.Workflow, summary *Summary, executedBy, correlationID string) error {
	executedAt := time.Now().UTC()

	results := map[string]any{
		"total":          summary.Total,
		"succeeded":      summary.Succeeded,
		"failed":         summary.Failed,
		"status":         string(summary.Status),
		"correlation_id": correlationID,
	}

	e.saveRecord(ctx, &models.ExecutionRecord{
		WorkflowID:   workflow.ID,
		ExecutorName: "workflow",
		Payload:      results,
		Status:       summary.Status,
		ExecutedAt:   executedAt,
		ExecutedBy:   executedBy,
		Duration:     summary.Duration,
	})

	extra := &persistence.StatusUpdate{
		ExecutedAt:       &executedAt,
		ExecutionResults: results,
	}

	reason := fmt.Sprintf("executed %d/%d steps", summary.Succeeded, summary.Total)

	return e.store.UpdateStatus(ctx, workflow.ID, models.StatusExecuted, executedBy, reason, extra)
}

// saveRecord persists one execution record. A failed audit write is reported
// but does not abort the run already in flight.
func (e *Engine) saveRecord(ctx context.Context, record *models.ExecutionRecord) {
	if err := e.store.SaveExecutionRecord(ctx, record); err != nil {
		e.logger.ErrorContext(ctx, "Failed to save execution record",
			"workflow_id", record.WorkflowID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

func protocolRequest(workflow *models.Workflow, step models.Step, correlationID string) protocol.ExecutionRequest {
	return protocol.ExecutionRequest{
		Workflow:      workflow,
		Step:          step,
		CorrelationID: correlationID,
	}
}
