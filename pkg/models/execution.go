package models

import "time"

// ExecutionStatus is the outcome of one execution attempt.
type ExecutionStatus string

const (
	ExecutionStatusExecuted       ExecutionStatus = "executed"
	ExecutionStatusFailed         ExecutionStatus = "failed"
	ExecutionStatusPartialFailure ExecutionStatus = "partial_failure" // Aggregate records only
)

var validExecutionStatuses = map[ExecutionStatus]bool{
	ExecutionStatusExecuted:       true,
	ExecutionStatusFailed:         true,
	ExecutionStatusPartialFailure: true,
}

func (s ExecutionStatus) IsValid() bool {
	return validExecutionStatuses[s]
}

// ExecutionRecord captures one execution attempt. StepNumber is nil for the
// whole-workflow aggregate record. Immutable once written; removed only by
// the retention sweeper.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	StepNumber   *int            `json:"step_number,omitempty"`
	ExecutorName string          `json:"executor_name"`
	Payload      map[string]any  `json:"payload,omitempty"`
	Status       ExecutionStatus `json:"execution_status"`
	ExecutedAt   time.Time       `json:"executed_at"`
	ExecutedBy   string          `json:"executed_by"`
	Duration     time.Duration   `json:"duration"`
	ErrorMessage string          `json:"error_message,omitempty"`
}
