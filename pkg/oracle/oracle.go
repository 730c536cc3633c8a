// Package oracle defines the decision oracle contract: the external
// capability that makes all risk, approval-routing, and step-planning
// judgments. The core consumes it, never implements it.
package oracle

import (
	"context"

	"github.com/verdantlabs/greenlight/pkg/models"
)

// Context carries ambient facts (call metadata, account context) passed
// through to every oracle call. Opaque to the core.
type Context map[string]any

// StructuredItem is a raw plan item after the oracle has structured it.
type StructuredItem struct {
	ActionDescription string         `json:"action_description"`
	Steps             []models.Step  `json:"steps,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// RiskAssessment is the oracle's risk judgment for one item.
type RiskAssessment struct {
	RiskLevel models.RiskLevel `json:"risk_level"`
	Reasoning string           `json:"reasoning"`
}

// ApprovalRouting decides whether a human must approve and which status the
// workflow starts in (or moves to after approval).
type ApprovalRouting struct {
	RequiresHumanApproval bool                  `json:"requires_human_approval"`
	InitialStatus         models.WorkflowStatus `json:"initial_status"`
	Reasoning             string                `json:"reasoning"`
}

// ApprovalValidation is the oracle's check of a human approval. An invalid
// result vetoes the approval.
type ApprovalValidation struct {
	Valid           bool   `json:"valid"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// RejectionValidation is the oracle's sanity check of a human rejection. A
// concern never overrides the human decision; it is appended to the reason.
type RejectionValidation struct {
	Valid   bool   `json:"valid"`
	Concern string `json:"concern,omitempty"`
}

// ExecutorChoice is the oracle's pick of executor and parameters for a
// workflow with no explicit steps. Confidence below the engine's configured
// threshold is a failure, never a degraded-but-used result.
type ExecutorChoice struct {
	ExecutorName string         `json:"executor_name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
}

// Oracle is the decision oracle capability. Every call may block on network
// I/O; callers must treat any error as failure of the specific item, step,
// or workflow being decided, never as something to mask with a default.
type Oracle interface {
	ExtractActionItem(ctx context.Context, rawItem models.PlanItem, sectionType models.WorkflowType, oc Context) (*StructuredItem, error)
	AssessRisk(ctx context.Context, item *StructuredItem, oc Context) (*RiskAssessment, error)
	DetermineApprovalRouting(ctx context.Context, item *StructuredItem, risk *RiskAssessment, oc Context) (*ApprovalRouting, error)
	ValidateApproval(ctx context.Context, workflow *models.Workflow, approver, reasoning string, oc Context) (*ApprovalValidation, error)
	ValidateRejection(ctx context.Context, workflow *models.Workflow, rejector, reason string, oc Context) (*RejectionValidation, error)
	ChooseExecutorAndParameters(ctx context.Context, workflow *models.Workflow, oc Context) (*ExecutorChoice, error)
}
