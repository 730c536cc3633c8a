package oracle

import (
	"errors"
	"fmt"
)

// ErrCollaborator is the sentinel for failures of an external collaborator
// (oracle call or executor) or an unusable result from one.
var ErrCollaborator = errors.New("collaborator failure")

// CollaboratorError wraps a failed collaborator call with which collaborator
// and operation failed, plus the workflow or item it was deciding for.
type CollaboratorError struct {
	Collaborator string // "oracle" or the executor name
	Op           string // Operation being performed (e.g., "AssessRisk")
	WorkflowID   string // Workflow ID if applicable
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s %s failed for workflow %s: %v", e.Collaborator, e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s %s failed: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator || errors.Is(e.Err, target)
}

// NewOracleError wraps a failed oracle call.
func NewOracleError(op, workflowID string, err error) *CollaboratorError {
	return &CollaboratorError{
		Collaborator: "oracle",
		Op:           op,
		WorkflowID:   workflowID,
		Err:          err,
	}
}

// IsCollaboratorError checks if an error came from an external collaborator.
func IsCollaboratorError(err error) bool {
	return errors.Is(err, ErrCollaborator)
}
