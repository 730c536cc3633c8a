// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/verdantlabs/greenlight/pkg/models"
)

type EventType string

// Topic is the event bus topic carrying all lifecycle events.
const Topic = "greenlight.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent       EventType = "workflow.created"
	WorkflowApprovedEvent      EventType = "workflow.approved"
	WorkflowRejectedEvent      EventType = "workflow.rejected"
	WorkflowExecutedEvent      EventType = "workflow.executed"
	WorkflowStepCompletedEvent EventType = "workflow.step.completed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowCreated struct {
	BaseEvent

	PlanID                string                `json:"plan_id"`
	WorkflowType          models.WorkflowType   `json:"workflow_type"`
	RiskLevel             models.RiskLevel      `json:"risk_level"`
	Status                models.WorkflowStatus `json:"status"`
	RequiresHumanApproval bool                  `json:"requires_human_approval"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowApproved struct {
	BaseEvent

	ApprovedBy string                `json:"approved_by"`
	NewStatus  models.WorkflowStatus `json:"new_status"`
	Reasoning  string                `json:"reasoning,omitempty"`
}

func (w WorkflowApproved) GetType() EventType {
	return WorkflowApprovedEvent
}

type WorkflowRejected struct {
	BaseEvent

	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func (w WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

type WorkflowExecuted struct {
	BaseEvent

	ExecutedBy     string                 `json:"executed_by"`
	AggregateState models.ExecutionStatus `json:"aggregate_state"`
	StepsTotal     int                    `json:"steps_total"`
	StepsSucceeded int                    `json:"steps_succeeded"`
	StepsFailed    int                    `json:"steps_failed"`
	DurationMs     int64                  `json:"duration_ms"`
}

func (w WorkflowExecuted) GetType() EventType {
	return WorkflowExecutedEvent
}

type WorkflowStepCompleted struct {
	BaseEvent

	StepNumber   int                    `json:"step_number"`
	ExecutorName string                 `json:"executor_name"`
	Status       models.ExecutionStatus `json:"status"`
	DurationMs   int64                  `json:"duration_ms"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

func (w WorkflowStepCompleted) GetType() EventType {
	return WorkflowStepCompletedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
