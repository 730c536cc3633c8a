package models

import "time"

// TransitionRecord is one append-only audit entry for a state-machine edge
// taken by a workflow. FromStatus is nil only for the creation record. A
// transition is never applied without its record in the same atomic unit.
type TransitionRecord struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	FromStatus     *WorkflowStatus `json:"from_status,omitempty"`
	ToStatus       WorkflowStatus  `json:"to_status"`
	Reason         string          `json:"reason"`
	TransitionedBy string          `json:"transitioned_by"`
	Timestamp      time.Time       `json:"timestamp"`
}
