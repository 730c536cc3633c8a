// Package persistence provides the data storage abstraction layer for
// workflows, transition records, and execution records.
package persistence

import (
	"context"
	"time"

	"github.com/verdantlabs/greenlight/pkg/models"
)

// StatusUpdate carries the approval/rejection/execution fields an
// UpdateStatus call may apply alongside the status change. Only the fields
// relevant to the target status should be set; write-once fields can never
// be touched through it.
type StatusUpdate struct {
	ApprovedBy       *string
	ApprovedAt       *time.Time
	RejectedBy       *string
	RejectedAt       *time.Time
	RejectionReason  string
	ExecutedAt       *time.Time
	ExecutionResults map[string]any
}

// WorkflowRepository is the sole owner of workflow and transition-record
// durability. Implementations must write the workflow row and its transition
// record in one atomic unit, and serialize UpdateStatus per workflow id.
type WorkflowRepository interface {
	// Create persists one workflow plus its initial transition record
	// (from=nil) atomically. Validation failures persist nothing.
	Create(ctx context.Context, workflow *models.Workflow) (string, error)

	// CreateBulk persists all workflows or none. If any item fails
	// validation, zero items persist.
	CreateBulk(ctx context.Context, workflows []*models.Workflow) ([]string, error)

	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetByPlan(ctx context.Context, planID string) ([]*models.Workflow, error)
	GetByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error)
	GetByRiskLevel(ctx context.Context, level models.RiskLevel) ([]*models.Workflow, error)
	GetByTypeAndPlan(ctx context.Context, workflowType models.WorkflowType, planID string) ([]*models.Workflow, error)

	// UpdateStatus verifies the (current, new) edge against the state
	// machine, applies the extra fields, and appends the transition record,
	// all atomically. Two concurrent calls from the same current status on
	// one workflow id cannot both succeed.
	UpdateStatus(ctx context.Context, id string, newStatus models.WorkflowStatus, transitionedBy, reason string, extra *StatusUpdate) error

	// Transitions returns the workflow's transition records oldest first.
	Transitions(ctx context.Context, id string) ([]*models.TransitionRecord, error)
}

// ExecutionRecordRepository stores append-only execution attempt records.
type ExecutionRecordRepository interface {
	Save(ctx context.Context, record *models.ExecutionRecord) error
	GetByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error)

	// DeleteOlderThan removes records executed before the cutoff. Used only
	// by the retention sweeper.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRecordRepository() ExecutionRecordRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
