package web

import (
	"github.com/verdantlabs/greenlight/pkg/models"
)

// ExtractPlanRequest is the payload for extracting a plan into workflows.
// The plan id comes from the route.
type ExtractPlanRequest struct {
	AnalysisID   string `json:"analysis_id"   validate:"required"`
	TranscriptID string `json:"transcript_id" validate:"required"`

	Borrower   []models.PlanItem `json:"borrower,omitempty"`
	Advisor    []models.PlanItem `json:"advisor,omitempty"`
	Supervisor []models.PlanItem `json:"supervisor,omitempty"`
	Leadership []models.PlanItem `json:"leadership,omitempty"`

	Context map[string]any `json:"context,omitempty"`
}

// Plan builds the domain plan from the request.
func (r *ExtractPlanRequest) Plan(planID string) *models.Plan {
	return &models.Plan{
		ID:           planID,
		AnalysisID:   r.AnalysisID,
		TranscriptID: r.TranscriptID,
		Borrower:     r.Borrower,
		Advisor:      r.Advisor,
		Supervisor:   r.Supervisor,
		Leadership:   r.Leadership,
	}
}

type ApproveWorkflowRequest struct {
	Approver  string         `json:"approver" validate:"required"`
	Reasoning string         `json:"reasoning,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

type RejectWorkflowRequest struct {
	Rejector string         `json:"rejector" validate:"required"`
	Reason   string         `json:"reason"   validate:"required"`
	Context  map[string]any `json:"context,omitempty"`
}

type ExecuteWorkflowRequest struct {
	ExecutedBy string         `json:"executed_by" validate:"required"`
	Context    map[string]any `json:"context,omitempty"`
}
