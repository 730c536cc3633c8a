// Package models defines the core domain models for risk-gated workflow lifecycle management.
package models

import "time"

// WorkflowType classifies a workflow by the plan section it was derived from.
// Fixed at creation, never mutated.
type WorkflowType string

const (
	WorkflowTypeBorrower   WorkflowType = "BORROWER"
	WorkflowTypeAdvisor    WorkflowType = "ADVISOR"
	WorkflowTypeSupervisor WorkflowType = "SUPERVISOR"
	WorkflowTypeLeadership WorkflowType = "LEADERSHIP"
)

var validWorkflowTypes = map[WorkflowType]bool{
	WorkflowTypeBorrower:   true,
	WorkflowTypeAdvisor:    true,
	WorkflowTypeSupervisor: true,
	WorkflowTypeLeadership: true,
}

func (t WorkflowType) IsValid() bool {
	return validWorkflowTypes[t]
}

func (t WorkflowType) String() string {
	return string(t)
}

// RiskLevel is assigned once at extraction and immutable afterwards.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

var validRiskLevels = map[RiskLevel]bool{
	RiskLevelLow:    true,
	RiskLevelMedium: true,
	RiskLevelHigh:   true,
}

func (r RiskLevel) IsValid() bool {
	return validRiskLevels[r]
}

func (r RiskLevel) String() string {
	return string(r)
}

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	StatusPendingAssessment WorkflowStatus = "PENDING_ASSESSMENT" // Only initial state
	StatusAwaitingApproval  WorkflowStatus = "AWAITING_APPROVAL"  // Held for a human decision
	StatusAutoApproved      WorkflowStatus = "AUTO_APPROVED"      // Cleared for execution
	StatusRejected          WorkflowStatus = "REJECTED"           // Terminal
	StatusExecuted          WorkflowStatus = "EXECUTED"           // Terminal; means "attempted and completed"
)

var validStatuses = map[WorkflowStatus]bool{
	StatusPendingAssessment: true,
	StatusAwaitingApproval:  true,
	StatusAutoApproved:      true,
	StatusRejected:          true,
	StatusExecuted:          true,
}

var terminalStatuses = map[WorkflowStatus]bool{
	StatusRejected: true,
	StatusExecuted: true,
}

// legalTransitions is the complete edge set of the lifecycle state machine.
// PENDING_ASSESSMENT -> REJECTED exists so a workflow can be rejected before
// routing has settled.
var legalTransitions = map[WorkflowStatus][]WorkflowStatus{
	StatusPendingAssessment: {StatusAwaitingApproval, StatusAutoApproved, StatusRejected},
	StatusAwaitingApproval:  {StatusAutoApproved, StatusExecuted, StatusRejected},
	StatusAutoApproved:      {StatusExecuted},
}

func (s WorkflowStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed from this status.
func (s WorkflowStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

func (s WorkflowStatus) String() string {
	return string(s)
}

// CanTransition reports whether (from, to) is a legal state-machine edge.
func CanTransition(from, to WorkflowStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Workflow is one unit of approvable, executable work derived from a plan item.
//
// Type, PlanID, AnalysisID, TranscriptID and RiskLevel are write-once: after
// creation only Status and the approval/rejection/execution fields mutate.
type Workflow struct {
	ID           string       `json:"id"`
	PlanID       string       `json:"plan_id"       validate:"required"`
	AnalysisID   string       `json:"analysis_id"   validate:"required"`
	TranscriptID string       `json:"transcript_id" validate:"required"`
	Type         WorkflowType `json:"workflow_type" validate:"required"`

	Data WorkflowData `json:"workflow_data"`

	RiskLevel     RiskLevel `json:"risk_level" validate:"required"`
	RiskReasoning string    `json:"risk_reasoning"`

	Status                WorkflowStatus `json:"status" validate:"required"`
	RequiresHumanApproval bool           `json:"requires_human_approval"`
	AssignedApprover      string         `json:"assigned_approver,omitempty"`

	ApprovedBy *string    `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	ExecutedAt       *time.Time     `json:"executed_at,omitempty"`
	ExecutionResults map[string]any `json:"execution_results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
