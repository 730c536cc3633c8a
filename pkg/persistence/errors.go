// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"

	"github.com/verdantlabs/greenlight/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrInvalidWorkflow indicates a workflow failed validation before any write.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrInvalidTransition indicates the requested status change is not a
	// legal state-machine edge from the workflow's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "Create", "UpdateStatus")
	WorkflowID string // Workflow ID if applicable
	PlanID     string // Plan ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	target := e.WorkflowID
	if target == "" && e.PlanID != "" {
		target = fmt.Sprintf("plan %s", e.PlanID)
	}

	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, target, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, target, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// TransitionError wraps an illegal status-transition attempt with the edge
// that was refused. It unwraps to ErrInvalidTransition.
type TransitionError struct {
	WorkflowID string
	From       models.WorkflowStatus
	To         models.WorkflowStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow %s: transition %s -> %s is not allowed", e.WorkflowID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError wraps a create-time validation failure with the field that
// failed. It unwraps to ErrInvalidWorkflow.
type ValidationError struct {
	WorkflowID string
	Field      string
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("workflow %s: invalid %s: %s", e.WorkflowID, e.Field, e.Detail)
	}

	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsInvalidTransition checks if an error indicates an illegal state-machine edge.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsInvalidWorkflow checks if an error indicates create-time validation failure.
func IsInvalidWorkflow(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow)
}
