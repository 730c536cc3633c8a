// Package store provides the workflow store service: validation, identity,
// persistence delegation, and created-event publication. It is the only
// component that mutates workflow status, via UpdateStatus.
package store

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/verdantlabs/greenlight/pkg/eventbus"
	"github.com/verdantlabs/greenlight/pkg/events"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/persistence"
)

type Store struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewStore(p persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Store {
	return &Store{
		persistence: p,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "workflow_store"),
	}
}

func (s *Store) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create persists one workflow and publishes its created event.
func (s *Store) Create(ctx context.Context, workflow *models.Workflow) (string, error) {
	ids, err := s.CreateBulk(ctx, []*models.Workflow{workflow})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

// CreateBulk persists the batch atomically: if any item is invalid, none
// persist. Created events are published only after the commit succeeds.
func (s *Store) CreateBulk(ctx context.Context, workflows []*models.Workflow) ([]string, error) {
	for _, workflow := range workflows {
		if err := s.validator.StructCtx(ctx, workflow); err != nil {
			return nil, &persistence.ValidationError{WorkflowID: workflow.ID, Field: "workflow", Detail: err.Error()}
		}
	}

	ids, err := s.persistence.WorkflowRepository().CreateBulk(ctx, workflows)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		s.publish(ctx, workflow.ID, events.WorkflowCreated{
			BaseEvent:             events.NewBaseEvent(events.WorkflowCreatedEvent, workflow.ID),
			PlanID:                workflow.PlanID,
			WorkflowType:          workflow.Type,
			RiskLevel:             workflow.RiskLevel,
			Status:                workflow.Status,
			RequiresHumanApproval: workflow.RequiresHumanApproval,
		})
	}

	return ids, nil
}

// GetByID returns the workflow or ErrWorkflowNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (s *Store) GetByPlan(ctx context.Context, planID string) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByPlan(ctx, planID)
}

func (s *Store) GetByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByStatus(ctx, status)
}

func (s *Store) GetByRiskLevel(ctx context.Context, level models.RiskLevel) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByRiskLevel(ctx, level)
}

func (s *Store) GetByTypeAndPlan(ctx context.Context, workflowType models.WorkflowType, planID string) ([]*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByTypeAndPlan(ctx, workflowType, planID)
}

// UpdateStatus applies one state-machine edge through the persistence layer,
// which verifies the edge and writes the transition record atomically.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus models.WorkflowStatus, transitionedBy, reason string, extra *persistence.StatusUpdate) error {
	return s.persistence.WorkflowRepository().UpdateStatus(ctx, id, newStatus, transitionedBy, reason, extra)
}

// Transitions returns the workflow's audit trail oldest first.
func (s *Store) Transitions(ctx context.Context, id string) ([]*models.TransitionRecord, error) {
	return s.persistence.WorkflowRepository().Transitions(ctx, id)
}

// SaveExecutionRecord appends one execution attempt to the audit store.
func (s *Store) SaveExecutionRecord(ctx context.Context, record *models.ExecutionRecord) error {
	return s.persistence.ExecutionRecordRepository().Save(ctx, record)
}

// ExecutionRecords returns the workflow's execution attempts oldest first.
func (s *Store) ExecutionRecords(ctx context.Context, id string) ([]*models.ExecutionRecord, error) {
	return s.persistence.ExecutionRecordRepository().GetByWorkflow(ctx, id)
}

func (s *Store) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}
