// Package main provides the Greenlight worker: it watches lifecycle events
// and executes workflows as soon as they are cleared for execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/verdantlabs/greenlight/pkg/eventbus"
	"github.com/verdantlabs/greenlight/pkg/events"
	"github.com/verdantlabs/greenlight/pkg/execution"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
)

const executedBy = "greenlight-worker"

type Worker struct {
	logger   *slog.Logger
	engine   *execution.Engine
	eventBus eventbus.EventBus
	sweeper  *execution.Sweeper
}

func NewWorker(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	oracleURL string,
	tracer trace.Tracer,
	retention time.Duration,
	retentionSchedule string,
) *Worker {
	oracleClient := oracle.NewHTTPOracle(oracleURL)
	workflowStore := store.NewStore(p, eventBus, logger)
	engine := execution.NewEngine(workflowStore, oracleClient, reg, eventBus, logger, execution.Config{Tracer: tracer})
	sweeper := execution.NewSweeper(p.ExecutionRecordRepository(), retention, retentionSchedule, logger)

	return &Worker{
		logger:   logger,
		engine:   engine,
		eventBus: eventBus,
		sweeper:  sweeper,
	}
}

// Run subscribes to lifecycle events and blocks until the context is
// canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.eventBus.Handle(events.WorkflowCreatedEvent, w.handleWorkflowCreated); err != nil {
		return err
	}

	if err := w.eventBus.Handle(events.WorkflowApprovedEvent, w.handleWorkflowApproved); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	if err := w.sweeper.Start(ctx); err != nil {
		return err
	}
	defer w.sweeper.Stop()

	w.logger.InfoContext(ctx, "Greenlight worker started")

	<-ctx.Done()

	w.logger.Info("Greenlight worker shutting down")

	return nil
}

// handleWorkflowCreated executes workflows that were auto-approved at
// creation.
func (w *Worker) handleWorkflowCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.WorkflowCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if created.Status != models.StatusAutoApproved {
		return nil
	}

	return w.execute(ctx, created.WorkflowID)
}

// handleWorkflowApproved executes workflows a human approval cleared for
// execution. Approvals routed straight to EXECUTED carry no work for us.
func (w *Worker) handleWorkflowApproved(ctx context.Context, event any) error {
	approved, ok := event.(*events.WorkflowApproved)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	if approved.NewStatus != models.StatusAutoApproved {
		return nil
	}

	return w.execute(ctx, approved.WorkflowID)
}

func (w *Worker) execute(ctx context.Context, workflowID string) error {
	summary, err := w.engine.ExecuteWorkflow(ctx, workflowID, executedBy, nil)
	if err != nil {
		// A state violation means another worker got there first; the
		// event is done either way.
		if persistence.IsInvalidTransition(err) {
			w.logger.InfoContext(ctx, "Workflow already transitioned, skipping",
				"workflow_id", workflowID)

			return nil
		}

		w.logger.ErrorContext(ctx, "Workflow execution failed",
			"workflow_id", workflowID, "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Workflow executed",
		"workflow_id", workflowID, "status", summary.Status,
		"succeeded", summary.Succeeded, "failed", summary.Failed)

	return nil
}
