// Package approval mediates human approve/reject decisions on workflows held
// for review. The gateway validates every decision with the oracle before
// driving the transition through the store; it never applies a transition the
// state machine would refuse.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdantlabs/greenlight/pkg/eventbus"
	"github.com/verdantlabs/greenlight/pkg/events"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/store"
)

// ErrApprovalVetoed indicates the oracle refused to validate a human
// approval. The workflow stays AWAITING_APPROVAL.
var ErrApprovalVetoed = errors.New("approval vetoed")

type Gateway struct {
	store    *store.Store
	oracle   oracle.Oracle
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

func NewGateway(s *store.Store, o oracle.Oracle, eventBus eventbus.EventPublisher, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:    s,
		oracle:   o,
		eventBus: eventBus,
		logger:   logger.With("module", "approval_gateway"),
	}
}

// Approve records a human approval. The workflow must be AWAITING_APPROVAL
// with requires_human_approval set; the oracle validates the approval (a veto
// fails the call) and chooses the post-approval status, either AUTO_APPROVED
// or EXECUTED. Not idempotent: approving an already-transitioned workflow
// fails the precondition check.
func (g *Gateway) Approve(ctx context.Context, workflowID, approver, reasoning string, oc oracle.Context) (*models.Workflow, error) {
	if approver == "" {
		return nil, &persistence.ValidationError{WorkflowID: workflowID, Field: "approver", Detail: "must not be empty"}
	}

	workflow, err := g.store.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.StatusAwaitingApproval {
		return nil, &persistence.TransitionError{WorkflowID: workflowID, From: workflow.Status, To: models.StatusAutoApproved}
	}

	if !workflow.RequiresHumanApproval {
		return nil, &persistence.ValidationError{
			WorkflowID: workflowID,
			Field:      "requires_human_approval",
			Detail:     "workflow does not require human approval",
		}
	}

	validation, err := g.oracle.ValidateApproval(ctx, workflow, approver, reasoning, oc)
	if err != nil {
		return nil, oracle.NewOracleError("ValidateApproval", workflowID, err)
	}

	if !validation.Valid {
		g.logger.WarnContext(ctx, "Approval vetoed",
			"workflow_id", workflowID, "approver", approver, "reason", validation.RejectionReason)

		return nil, fmt.Errorf("workflow %s: %w: %s", workflowID, ErrApprovalVetoed, validation.RejectionReason)
	}

	next, err := g.postApprovalStatus(ctx, workflow, oc)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	extra := &persistence.StatusUpdate{ApprovedBy: &approver, ApprovedAt: &now}

	if err := g.store.UpdateStatus(ctx, workflowID, next, approver, reasoning, extra); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "Workflow approved",
		"workflow_id", workflowID, "approver", approver, "new_status", next)

	g.publish(ctx, workflowID, events.WorkflowApproved{
		BaseEvent:  events.NewBaseEvent(events.WorkflowApprovedEvent, workflowID),
		ApprovedBy: approver,
		NewStatus:  next,
		Reasoning:  reasoning,
	})

	return g.store.GetByID(ctx, workflowID)
}

// Reject records a human rejection. Allowed from AWAITING_APPROVAL and from
// PENDING_ASSESSMENT (a workflow may be pulled before routing settles). The
// oracle sanity-checks the rejection; a concern is appended to the stored
// reason but never overrides the human decision.
func (g *Gateway) Reject(ctx context.Context, workflowID, rejector, reason string, oc oracle.Context) (*models.Workflow, error) {
	if rejector == "" {
		return nil, &persistence.ValidationError{WorkflowID: workflowID, Field: "rejector", Detail: "must not be empty"}
	}

	if reason == "" {
		return nil, &persistence.ValidationError{WorkflowID: workflowID, Field: "reason", Detail: "must not be empty"}
	}

	workflow, err := g.store.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.StatusAwaitingApproval && workflow.Status != models.StatusPendingAssessment {
		return nil, &persistence.TransitionError{WorkflowID: workflowID, From: workflow.Status, To: models.StatusRejected}
	}

	storedReason := reason

	validation, err := g.oracle.ValidateRejection(ctx, workflow, rejector, reason, oc)
	if err != nil {
		return nil, oracle.NewOracleError("ValidateRejection", workflowID, err)
	}

	if !validation.Valid && validation.Concern != "" {
		storedReason = reason + " [oracle concern: " + validation.Concern + "]"

		g.logger.WarnContext(ctx, "Oracle disagreed with rejection",
			"workflow_id", workflowID, "rejector", rejector, "concern", validation.Concern)
	}

	now := time.Now().UTC()
	extra := &persistence.StatusUpdate{
		RejectedBy:      &rejector,
		RejectedAt:      &now,
		RejectionReason: storedReason,
	}

	if err := g.store.UpdateStatus(ctx, workflowID, models.StatusRejected, rejector, storedReason, extra); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "Workflow rejected",
		"workflow_id", workflowID, "rejector", rejector)

	g.publish(ctx, workflowID, events.WorkflowRejected{
		BaseEvent:  events.NewBaseEvent(events.WorkflowRejectedEvent, workflowID),
		RejectedBy: rejector,
		Reason:     storedReason,
	})

	return g.store.GetByID(ctx, workflowID)
}

// postApprovalStatus asks the oracle which status the workflow moves to once
// approved. Anything other than AUTO_APPROVED or EXECUTED is unusable; no
// default is substituted.
func (g *Gateway) postApprovalStatus(ctx context.Context, workflow *models.Workflow, oc oracle.Context) (models.WorkflowStatus, error) {
	item := &oracle.StructuredItem{
		ActionDescription: workflow.Data.ActionDescription,
		Steps:             workflow.Data.Steps,
		Metadata:          workflow.Data.Metadata,
	}
	risk := &oracle.RiskAssessment{
		RiskLevel: workflow.RiskLevel,
		Reasoning: workflow.RiskReasoning,
	}

	routing, err := g.oracle.DetermineApprovalRouting(ctx, item, risk, oc)
	if err != nil {
		return "", oracle.NewOracleError("DetermineApprovalRouting", workflow.ID, err)
	}

	switch routing.InitialStatus {
	case models.StatusAutoApproved, models.StatusExecuted:
		return routing.InitialStatus, nil
	default:
		return "", oracle.NewOracleError("DetermineApprovalRouting", workflow.ID,
			fmt.Errorf("unusable post-approval status %q", routing.InitialStatus))
	}
}

func (g *Gateway) publish(ctx context.Context, key string, event eventbus.Event) {
	if g.eventBus == nil {
		return
	}

	if err := g.eventBus.Publish(ctx, key, event); err != nil {
		g.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}
