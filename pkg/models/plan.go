package models

import "errors"

// PlanItem is one raw action item from an upstream plan section. The shape is
// owned by the planning stage; the oracle structures it during extraction.
type PlanItem map[string]any

// Plan is the upstream planning document: four independent sections of raw
// action items, each ordered. Provenance ids are carried into every workflow
// derived from the plan.
type Plan struct {
	ID           string `json:"id"            validate:"required"`
	AnalysisID   string `json:"analysis_id"   validate:"required"`
	TranscriptID string `json:"transcript_id" validate:"required"`

	Borrower   []PlanItem `json:"borrower"`
	Advisor    []PlanItem `json:"advisor"`
	Supervisor []PlanItem `json:"supervisor"`
	Leadership []PlanItem `json:"leadership"`
}

// Sections returns the plan's sections keyed by the workflow type derived
// from them. Iteration order across sections is not significant.
func (p *Plan) Sections() map[WorkflowType][]PlanItem {
	return map[WorkflowType][]PlanItem{
		WorkflowTypeBorrower:   p.Borrower,
		WorkflowTypeAdvisor:    p.Advisor,
		WorkflowTypeSupervisor: p.Supervisor,
		WorkflowTypeLeadership: p.Leadership,
	}
}

// ItemCount returns the total number of raw items across all sections.
func (p *Plan) ItemCount() int {
	return len(p.Borrower) + len(p.Advisor) + len(p.Supervisor) + len(p.Leadership)
}

// Validate checks the plan's provenance fields.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return errors.New("plan id is required")
	}

	if p.AnalysisID == "" {
		return errors.New("plan analysis_id is required")
	}

	if p.TranscriptID == "" {
		return errors.New("plan transcript_id is required")
	}

	return nil
}
