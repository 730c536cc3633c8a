// Package mocks provides testify mocks for external collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
)

// MockOracle is a mock implementation of the oracle.Oracle interface.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) ExtractActionItem(ctx context.Context, rawItem models.PlanItem, sectionType models.WorkflowType, oc oracle.Context) (*oracle.StructuredItem, error) {
	args := m.Called(ctx, rawItem, sectionType, oc)

	if item := args.Get(0); item != nil {
		return item.(*oracle.StructuredItem), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOracle) AssessRisk(ctx context.Context, item *oracle.StructuredItem, oc oracle.Context) (*oracle.RiskAssessment, error) {
	args := m.Called(ctx, item, oc)

	if risk := args.Get(0); risk != nil {
		return risk.(*oracle.RiskAssessment), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOracle) DetermineApprovalRouting(ctx context.Context, item *oracle.StructuredItem, risk *oracle.RiskAssessment, oc oracle.Context) (*oracle.ApprovalRouting, error) {
	args := m.Called(ctx, item, risk, oc)

	if routing := args.Get(0); routing != nil {
		return routing.(*oracle.ApprovalRouting), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOracle) ValidateApproval(ctx context.Context, workflow *models.Workflow, approver, reasoning string, oc oracle.Context) (*oracle.ApprovalValidation, error) {
	args := m.Called(ctx, workflow, approver, reasoning, oc)

	if validation := args.Get(0); validation != nil {
		return validation.(*oracle.ApprovalValidation), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOracle) ValidateRejection(ctx context.Context, workflow *models.Workflow, rejector, reason string, oc oracle.Context) (*oracle.RejectionValidation, error) {
	args := m.Called(ctx, workflow, rejector, reason, oc)

	if validation := args.Get(0); validation != nil {
		return validation.(*oracle.RejectionValidation), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOracle) ChooseExecutorAndParameters(ctx context.Context, workflow *models.Workflow, oc oracle.Context) (*oracle.ExecutorChoice, error) {
	args := m.Called(ctx, workflow, oc)

	if choice := args.Get(0); choice != nil {
		return choice.(*oracle.ExecutorChoice), args.Error(1)
	}

	return nil, args.Error(1)
}
