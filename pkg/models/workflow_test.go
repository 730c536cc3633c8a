package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from WorkflowStatus
		to   WorkflowStatus
	}{
		{StatusPendingAssessment, StatusAwaitingApproval},
		{StatusPendingAssessment, StatusAutoApproved},
		{StatusPendingAssessment, StatusRejected},
		{StatusAwaitingApproval, StatusAutoApproved},
		{StatusAwaitingApproval, StatusExecuted},
		{StatusAwaitingApproval, StatusRejected},
		{StatusAutoApproved, StatusExecuted},
	}

	for _, edge := range allowed {
		assert.True(t, CanTransition(edge.from, edge.to), "%s -> %s should be allowed", edge.from, edge.to)
	}
}

func TestCanTransitionRejectsEverythingElse(t *testing.T) {
	allowed := map[[2]WorkflowStatus]bool{}
	for from, targets := range legalTransitions {
		for _, to := range targets {
			allowed[[2]WorkflowStatus{from, to}] = true
		}
	}

	all := []WorkflowStatus{
		StatusPendingAssessment,
		StatusAwaitingApproval,
		StatusAutoApproved,
		StatusRejected,
		StatusExecuted,
	}

	for _, from := range all {
		for _, to := range all {
			if allowed[[2]WorkflowStatus{from, to}] {
				continue
			}

			assert.False(t, CanTransition(from, to), "%s -> %s should be refused", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusExecuted.IsTerminal())

	assert.Empty(t, legalTransitions[StatusRejected])
	assert.Empty(t, legalTransitions[StatusExecuted])

	assert.False(t, StatusPendingAssessment.IsTerminal())
	assert.False(t, StatusAwaitingApproval.IsTerminal())
	assert.False(t, StatusAutoApproved.IsTerminal())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, WorkflowTypeBorrower.IsValid())
	assert.True(t, WorkflowTypeLeadership.IsValid())
	assert.False(t, WorkflowType("CUSTOMER").IsValid())

	assert.True(t, RiskLevelLow.IsValid())
	assert.True(t, RiskLevelHigh.IsValid())
	assert.False(t, RiskLevel("CRITICAL").IsValid())

	assert.True(t, StatusPendingAssessment.IsValid())
	assert.False(t, WorkflowStatus("APPROVED").IsValid())
}

func TestStepValidate(t *testing.T) {
	step := Step{StepNumber: 1, Action: "notify borrower", ToolNeeded: "log"}
	assert.NoError(t, step.Validate())

	missingTool := Step{StepNumber: 1, Action: "notify borrower"}
	assert.Error(t, missingTool.Validate())

	badNumber := Step{StepNumber: 0, Action: "notify borrower", ToolNeeded: "log"}
	assert.Error(t, badNumber.Validate())

	badKind := Step{StepNumber: 1, Kind: "webhook", Action: "notify", ToolNeeded: "log"}
	assert.Error(t, badKind.Validate())
}

func TestWorkflowDataValidate(t *testing.T) {
	data := WorkflowData{
		Version:           WorkflowDataVersion,
		ActionDescription: "send payoff quote",
		Steps: []Step{
			{StepNumber: 1, Action: "generate quote", ToolNeeded: "document"},
			{StepNumber: 2, Action: "send quote", ToolNeeded: "http_call"},
		},
	}
	assert.NoError(t, data.Validate())

	empty := WorkflowData{Version: WorkflowDataVersion}
	assert.Error(t, empty.Validate())

	badStep := WorkflowData{
		Version:           WorkflowDataVersion,
		ActionDescription: "send payoff quote",
		Steps:             []Step{{StepNumber: 1, Action: ""}},
	}
	assert.Error(t, badStep.Validate())
}
