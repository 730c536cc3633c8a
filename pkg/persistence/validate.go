package persistence

import (
	"github.com/verdantlabs/greenlight/pkg/models"
)

// ValidateForCreate checks every write-once field a workflow must carry
// before it is persisted. Backends call it inside their atomic unit so an
// invalid item never produces a partial write. No defaults are substituted.
func ValidateForCreate(w *models.Workflow) error {
	if w == nil {
		return &ValidationError{Field: "workflow", Detail: "workflow is nil"}
	}

	if w.PlanID == "" {
		return &ValidationError{WorkflowID: w.ID, Field: "plan_id", Detail: "required"}
	}

	if w.AnalysisID == "" {
		return &ValidationError{WorkflowID: w.ID, Field: "analysis_id", Detail: "required"}
	}

	if w.TranscriptID == "" {
		return &ValidationError{WorkflowID: w.ID, Field: "transcript_id", Detail: "required"}
	}

	if !w.Type.IsValid() {
		return &ValidationError{WorkflowID: w.ID, Field: "workflow_type", Detail: "unknown type " + string(w.Type)}
	}

	if !w.RiskLevel.IsValid() {
		return &ValidationError{WorkflowID: w.ID, Field: "risk_level", Detail: "unknown level " + string(w.RiskLevel)}
	}

	if !w.Status.IsValid() {
		return &ValidationError{WorkflowID: w.ID, Field: "status", Detail: "unknown status " + string(w.Status)}
	}

	if err := w.Data.Validate(); err != nil {
		return &ValidationError{WorkflowID: w.ID, Field: "workflow_data", Detail: err.Error()}
	}

	return nil
}

// ApplyStatusUpdate copies the approval/rejection/execution fields from a
// StatusUpdate onto a workflow. Write-once fields are untouchable here.
func ApplyStatusUpdate(w *models.Workflow, extra *StatusUpdate) {
	if extra == nil {
		return
	}

	if extra.ApprovedBy != nil {
		w.ApprovedBy = extra.ApprovedBy
	}

	if extra.ApprovedAt != nil {
		w.ApprovedAt = extra.ApprovedAt
	}

	if extra.RejectedBy != nil {
		w.RejectedBy = extra.RejectedBy
	}

	if extra.RejectedAt != nil {
		w.RejectedAt = extra.RejectedAt
	}

	if extra.RejectionReason != "" {
		w.RejectionReason = extra.RejectionReason
	}

	if extra.ExecutedAt != nil {
		w.ExecutedAt = extra.ExecutedAt
	}

	if extra.ExecutionResults != nil {
		w.ExecutionResults = extra.ExecutionResults
	}
}
