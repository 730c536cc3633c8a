package execution

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenlight/pkg/mocks"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/persistence/file"
	"github.com/verdantlabs/greenlight/pkg/protocol"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
)

type stubExecutor struct {
	payload map[string]any
	err     error
	calls   int
}

func (s *stubExecutor) Execute(_ context.Context, _ protocol.ExecutionRequest, _ *slog.Logger) (map[string]any, error) {
	s.calls++

	return s.payload, s.err
}

type stubFactory struct {
	name     string
	executor protocol.Executor
	schema   *models.JSONSchema
}

func (f *stubFactory) Create(_ map[string]any) (protocol.Executor, error) { return f.executor, nil }
func (f *stubFactory) Name() string                                       { return f.name }
func (f *stubFactory) Schema() *models.JSONSchema                         { return f.schema }

func newTestEngine(t *testing.T, o oracle.Oracle, factories ...protocol.ExecutorFactory) (*Engine, *store.Store) {
	t.Helper()

	logger := slog.Default()
	reg := registry.NewRegistry(logger)

	for _, factory := range factories {
		reg.RegisterExecutor(factory)
	}

	workflowStore := store.NewStore(file.NewPersistence(t.TempDir()), nil, logger)
	engine := NewEngine(workflowStore, o, reg, nil, logger, Config{})

	return engine, workflowStore
}

func approvedWorkflow(steps ...models.Step) *models.Workflow {
	return &models.Workflow{
		PlanID:       "plan-1",
		AnalysisID:   "analysis-1",
		TranscriptID: "transcript-1",
		Type:         models.WorkflowTypeBorrower,
		Data: models.WorkflowData{
			Version:           models.WorkflowDataVersion,
			ActionDescription: "send payoff quote",
			Steps:             steps,
		},
		RiskLevel: models.RiskLevelLow,
		Status:    models.StatusAutoApproved,
	}
}

func TestExecuteWorkflowContinuesPastFailedStep(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}
	bad := &stubExecutor{err: errors.New("downstream rejected the call")}

	engine, workflowStore := newTestEngine(t, &mocks.MockOracle{},
		&stubFactory{name: "good", executor: good},
		&stubFactory{name: "bad", executor: bad},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow(
		models.Step{StepNumber: 1, Action: "first", ToolNeeded: "good"},
		models.Step{StepNumber: 2, Action: "second", ToolNeeded: "bad"},
		models.Step{StepNumber: 3, Action: "third", ToolNeeded: "good"},
	))
	require.NoError(t, err)

	summary, err := engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.ExecutionStatusPartialFailure, summary.Status)
	assert.Equal(t, 2, good.calls, "the step after the failure must still run")

	workflow, err := workflowStore.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, workflow.Status)
	assert.NotNil(t, workflow.ExecutedAt)

	records, err := workflowStore.ExecutionRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 4, "three step records plus the aggregate")

	var aggregate *models.ExecutionRecord

	failedSteps := 0

	for _, record := range records {
		if record.StepNumber == nil {
			aggregate = record

			continue
		}

		if record.Status == models.ExecutionStatusFailed {
			failedSteps++

			assert.Equal(t, 2, *record.StepNumber)
			assert.Contains(t, record.ErrorMessage, "downstream rejected the call")
		}
	}

	require.NotNil(t, aggregate)
	assert.Equal(t, models.ExecutionStatusPartialFailure, aggregate.Status)
	assert.Equal(t, 1, failedSteps)
}

func TestExecuteWorkflowAllStepsSucceed(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}

	engine, workflowStore := newTestEngine(t, &mocks.MockOracle{},
		&stubFactory{name: "good", executor: good},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow(
		models.Step{StepNumber: 2, Action: "second", ToolNeeded: "good"},
		models.Step{StepNumber: 1, Action: "first", ToolNeeded: "good"},
	))
	require.NoError(t, err)

	summary, err := engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusExecuted, summary.Status)
	require.Len(t, summary.StepResults, 2)
	assert.Equal(t, 1, summary.StepResults[0].StepNumber, "steps must run in ascending order")
	assert.Equal(t, 2, summary.StepResults[1].StepNumber)
}

func TestExecuteWorkflowUnknownExecutorFailsOnlyThatStep(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}

	engine, workflowStore := newTestEngine(t, &mocks.MockOracle{},
		&stubFactory{name: "good", executor: good},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow(
		models.Step{StepNumber: 1, Action: "first", ToolNeeded: "nonexistent"},
		models.Step{StepNumber: 2, Action: "second", ToolNeeded: "good"},
	))
	require.NoError(t, err)

	summary, err := engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, models.ExecutionStatusPartialFailure, summary.Status)

	workflow, err := workflowStore.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, workflow.Status)
}

func TestExecuteWorkflowSchemaInvalidParametersFailStep(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}
	schema := &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"url": {Type: "string"},
		},
		Required: []string{"url"},
	}

	engine, workflowStore := newTestEngine(t, &mocks.MockOracle{},
		&stubFactory{name: "strict", executor: good, schema: schema},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow(
		models.Step{StepNumber: 1, Action: "call", ToolNeeded: "strict", Parameters: map[string]any{"method": "GET"}},
	))
	require.NoError(t, err)

	summary, err := engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, good.calls, "schema-invalid parameters must never reach the executor")
}

func TestExecuteWorkflowRequiresApprovedStatus(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}

	engine, workflowStore := newTestEngine(t, &mocks.MockOracle{},
		&stubFactory{name: "good", executor: good},
	)

	held := approvedWorkflow(models.Step{StepNumber: 1, Action: "first", ToolNeeded: "good"})
	held.Status = models.StatusAwaitingApproval
	held.RequiresHumanApproval = true

	id, err := workflowStore.Create(ctx, held)
	require.NoError(t, err)

	_, err = engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidTransition(err))
	assert.Zero(t, good.calls, "a non-approved workflow must fail before any executor runs")
}

func TestExecuteWorkflowMissingWorkflow(t *testing.T) {
	engine, _ := newTestEngine(t, &mocks.MockOracle{})

	_, err := engine.ExecuteWorkflow(context.Background(), "missing", "worker", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestExecuteWorkflowSynthesizesStepWhenNoneDeclared(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}

	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ChooseExecutorAndParameters", mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ExecutorChoice{ExecutorName: "good", Confidence: 0.92, Reasoning: "single obvious action"}, nil)

	engine, workflowStore := newTestEngine(t, mockOracle,
		&stubFactory{name: "good", executor: good},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow())
	require.NoError(t, err)

	summary, err := engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, models.ExecutionStatusExecuted, summary.Status)
	assert.Equal(t, 1, good.calls)
	require.Len(t, summary.StepResults, 1)
	assert.Equal(t, "good", summary.StepResults[0].ExecutorName)
}

func TestExecuteWorkflowLowConfidenceFailsBeforeExecuting(t *testing.T) {
	ctx := context.Background()

	good := &stubExecutor{payload: map[string]any{"ok": true}}

	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ChooseExecutorAndParameters", mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.ExecutorChoice{ExecutorName: "good", Confidence: 0.2}, nil)

	engine, workflowStore := newTestEngine(t, mockOracle,
		&stubFactory{name: "good", executor: good},
	)

	id, err := workflowStore.Create(ctx, approvedWorkflow())
	require.NoError(t, err)

	_, err = engine.ExecuteWorkflow(ctx, id, "worker", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLowConfidence)
	assert.Zero(t, good.calls)

	workflow, err := workflowStore.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAutoApproved, workflow.Status, "low confidence must leave the workflow untouched")

	records, err := workflowStore.ExecutionRecords(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, records)
}
