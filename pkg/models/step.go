package models

import (
	"errors"
	"fmt"
)

// WorkflowDataVersion is the current version of the WorkflowData document shape.
const WorkflowDataVersion = 1

// StepKind is a closed set of known step shapes. Executor-specific knobs the
// core does not interpret go through Step.Parameters.
type StepKind string

const (
	StepKindAction       StepKind = "action"
	StepKindNotification StepKind = "notification"
	StepKindDocument     StepKind = "document"
)

var validStepKinds = map[StepKind]bool{
	StepKindAction:       true,
	StepKindNotification: true,
	StepKindDocument:     true,
}

func (k StepKind) IsValid() bool {
	return validStepKinds[k]
}

// Step is one executable unit within a workflow. ToolNeeded names the
// registered executor that performs it.
type Step struct {
	StepNumber int            `json:"step_number" validate:"required,min=1"`
	Kind       StepKind       `json:"kind"`
	Action     string         `json:"action"      validate:"required"`
	ToolNeeded string         `json:"tool_needed" validate:"required"`
	Details    string         `json:"details,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks the step's closed fields. Parameters are validated later
// against the executor's schema, not here.
func (s *Step) Validate() error {
	if s.StepNumber < 1 {
		return fmt.Errorf("step_number must be >= 1, got %d", s.StepNumber)
	}

	if s.Kind != "" && !s.Kind.IsValid() {
		return fmt.Errorf("unknown step kind: %s", s.Kind)
	}

	if s.Action == "" {
		return errors.New("step action is required")
	}

	if s.ToolNeeded == "" {
		return errors.New("step tool_needed is required")
	}

	return nil
}

// WorkflowData is the workflow payload: an action description plus optional
// ordered steps. When Steps is empty the execution engine synthesizes one.
type WorkflowData struct {
	Version           int            `json:"version"`
	ActionDescription string         `json:"action_description"`
	Steps             []Step         `json:"steps,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Validate checks the payload shape, including every declared step.
func (d *WorkflowData) Validate() error {
	if d.ActionDescription == "" {
		return errors.New("workflow_data action_description is required")
	}

	for i := range d.Steps {
		if err := d.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", d.Steps[i].StepNumber, err)
		}
	}

	return nil
}
