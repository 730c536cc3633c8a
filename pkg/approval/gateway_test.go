package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenlight/pkg/mocks"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/persistence/file"
	"github.com/verdantlabs/greenlight/pkg/store"
)

func newTestGateway(t *testing.T, o oracle.Oracle) (*Gateway, *store.Store) {
	t.Helper()

	logger := slog.Default()
	workflowStore := store.NewStore(file.NewPersistence(t.TempDir()), nil, logger)

	return NewGateway(workflowStore, o, nil, logger), workflowStore
}

func heldWorkflow() *models.Workflow {
	return &models.Workflow{
		PlanID:       "plan-1",
		AnalysisID:   "analysis-1",
		TranscriptID: "transcript-1",
		Type:         models.WorkflowTypeSupervisor,
		Data: models.WorkflowData{
			Version:           models.WorkflowDataVersion,
			ActionDescription: "waive late fee",
		},
		RiskLevel:             models.RiskLevelHigh,
		Status:                models.StatusAwaitingApproval,
		RequiresHumanApproval: true,
	}
}

func TestApproveMovesWorkflowForward(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateApproval", mock.Anything, mock.Anything, "jordan", "fee was our error", mock.Anything).
		Return(&oracle.ApprovalValidation{Valid: true}, nil)
	mockOracle.On("DetermineApprovalRouting", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ApprovalRouting{InitialStatus: models.StatusAutoApproved}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	workflow, err := gateway.Approve(ctx, id, "jordan", "fee was our error", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAutoApproved, workflow.Status)
	require.NotNil(t, workflow.ApprovedBy)
	assert.Equal(t, "jordan", *workflow.ApprovedBy)
	assert.NotNil(t, workflow.ApprovedAt)

	transitions, err := workflowStore.Transitions(ctx, id)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, models.StatusAutoApproved, transitions[1].ToStatus)
	assert.Equal(t, "jordan", transitions[1].TransitionedBy)
}

func TestApproveVetoLeavesWorkflowHeld(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ApprovalValidation{Valid: false, RejectionReason: "approver lacks authority"}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	_, err = gateway.Approve(ctx, id, "jordan", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrApprovalVetoed)

	workflow, err := workflowStore.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingApproval, workflow.Status)
	assert.Nil(t, workflow.ApprovedBy)
}

func TestApproveRequiresAwaitingApproval(t *testing.T) {
	ctx := context.Background()
	gateway, workflowStore := newTestGateway(t, &mocks.MockOracle{})

	auto := heldWorkflow()
	auto.Status = models.StatusAutoApproved
	auto.RequiresHumanApproval = false

	id, err := workflowStore.Create(ctx, auto)
	require.NoError(t, err)

	_, err = gateway.Approve(ctx, id, "jordan", "", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidTransition(err))
}

func TestApproveIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ApprovalValidation{Valid: true}, nil)
	mockOracle.On("DetermineApprovalRouting", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ApprovalRouting{InitialStatus: models.StatusAutoApproved}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	_, err = gateway.Approve(ctx, id, "jordan", "", nil)
	require.NoError(t, err)

	_, err = gateway.Approve(ctx, id, "jordan", "", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidTransition(err))
}

func TestApproveOracleFailureIsCollaboratorError(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateApproval", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("oracle unavailable"))

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	_, err = gateway.Approve(ctx, id, "jordan", "", nil)
	require.Error(t, err)
	assert.True(t, oracle.IsCollaboratorError(err))
}

func TestApproveMissingWorkflow(t *testing.T) {
	gateway, _ := newTestGateway(t, &mocks.MockOracle{})

	_, err := gateway.Approve(context.Background(), "missing", "jordan", "", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRejectRecordsReason(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateRejection", mock.Anything, mock.Anything, "jordan", "duplicate request", mock.Anything).
		Return(&oracle.RejectionValidation{Valid: true}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	workflow, err := gateway.Reject(ctx, id, "jordan", "duplicate request", nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, workflow.Status)
	require.NotNil(t, workflow.RejectedBy)
	assert.Equal(t, "jordan", *workflow.RejectedBy)
	assert.Equal(t, "duplicate request", workflow.RejectionReason)
}

func TestRejectAppendsOracleConcernWithoutOverriding(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateRejection", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.RejectionValidation{Valid: false, Concern: "item looks actionable"}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	workflow, err := gateway.Reject(ctx, id, "jordan", "duplicate request", nil)
	require.NoError(t, err, "oracle disagreement must not override a human rejection")

	assert.Equal(t, models.StatusRejected, workflow.Status)
	assert.True(t, strings.HasPrefix(workflow.RejectionReason, "duplicate request"))
	assert.Contains(t, workflow.RejectionReason, "item looks actionable")
}

func TestRejectFromPendingAssessment(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateRejection", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.RejectionValidation{Valid: true}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	pending := heldWorkflow()
	pending.Status = models.StatusPendingAssessment

	id, err := workflowStore.Create(ctx, pending)
	require.NoError(t, err)

	workflow, err := gateway.Reject(ctx, id, "jordan", "pulled before routing", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, workflow.Status)
}

func TestRejectIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateRejection", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.RejectionValidation{Valid: true}, nil)

	gateway, workflowStore := newTestGateway(t, mockOracle)

	id, err := workflowStore.Create(ctx, heldWorkflow())
	require.NoError(t, err)

	_, err = gateway.Reject(ctx, id, "jordan", "duplicate request", nil)
	require.NoError(t, err)

	_, err = gateway.Reject(ctx, id, "jordan", "again", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidTransition(err))
}

func TestRejectRequiresReason(t *testing.T) {
	gateway, _ := newTestGateway(t, &mocks.MockOracle{})

	_, err := gateway.Reject(context.Background(), "wf-1", "jordan", "", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidWorkflow(err))
}
