package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenlight/pkg/approval"
	"github.com/verdantlabs/greenlight/pkg/execution"
	"github.com/verdantlabs/greenlight/pkg/extraction"
	logexecutor "github.com/verdantlabs/greenlight/pkg/executors/log"
	"github.com/verdantlabs/greenlight/pkg/mocks"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence/file"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
	"github.com/verdantlabs/greenlight/pkg/web"
)

func setupTestApp(t *testing.T, mockOracle *mocks.MockOracle) (*fiber.App, *store.Store) {
	t.Helper()

	logger := slog.Default()
	workflowStore := store.NewStore(file.NewPersistence(t.TempDir()), nil, logger)

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(logexecutor.NewFactory())

	orchestrator := extraction.NewOrchestrator(mockOracle, workflowStore, logger)
	gateway := approval.NewGateway(workflowStore, mockOracle, nil, logger)
	engine := execution.NewEngine(workflowStore, mockOracle, reg, nil, logger, execution.Config{})

	handlers := web.NewAPIHandlers(workflowStore, orchestrator, gateway, engine, reg,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, workflowStore
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func riskMatcher(level models.RiskLevel) any {
	return mock.MatchedBy(func(risk *oracle.RiskAssessment) bool {
		return risk.RiskLevel == level
	})
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	mockOracle := &mocks.MockOracle{}

	lowItem := &oracle.StructuredItem{
		ActionDescription: "send payoff quote",
		Steps:             []models.Step{{StepNumber: 1, Action: "send payoff quote", ToolNeeded: "log"}},
	}
	highItem := &oracle.StructuredItem{
		ActionDescription: "waive late fee",
		Steps:             []models.Step{{StepNumber: 1, Action: "waive late fee", ToolNeeded: "log"}},
	}

	mockOracle.On("ExtractActionItem", mock.Anything, models.PlanItem{"action": "send payoff quote"}, models.WorkflowTypeBorrower, mock.Anything).
		Return(lowItem, nil)
	mockOracle.On("ExtractActionItem", mock.Anything, models.PlanItem{"action": "waive late fee"}, models.WorkflowTypeSupervisor, mock.Anything).
		Return(highItem, nil)

	mockOracle.On("AssessRisk", mock.Anything, lowItem, mock.Anything).
		Return(&oracle.RiskAssessment{RiskLevel: models.RiskLevelLow, Reasoning: "routine"}, nil)
	mockOracle.On("AssessRisk", mock.Anything, highItem, mock.Anything).
		Return(&oracle.RiskAssessment{RiskLevel: models.RiskLevelHigh, Reasoning: "financial impact"}, nil)

	mockOracle.On("DetermineApprovalRouting", mock.Anything, mock.Anything, riskMatcher(models.RiskLevelLow), mock.Anything).
		Return(&oracle.ApprovalRouting{RequiresHumanApproval: false, InitialStatus: models.StatusAutoApproved}, nil)

	// First HIGH routing call happens during extraction; the second decides
	// the post-approval status.
	mockOracle.On("DetermineApprovalRouting", mock.Anything, mock.Anything, riskMatcher(models.RiskLevelHigh), mock.Anything).
		Return(&oracle.ApprovalRouting{RequiresHumanApproval: true, InitialStatus: models.StatusAwaitingApproval}, nil).Once()
	mockOracle.On("DetermineApprovalRouting", mock.Anything, mock.Anything, riskMatcher(models.RiskLevelHigh), mock.Anything).
		Return(&oracle.ApprovalRouting{RequiresHumanApproval: true, InitialStatus: models.StatusAutoApproved}, nil)

	mockOracle.On("ValidateApproval", mock.Anything, mock.Anything, "jordan", mock.Anything, mock.Anything).
		Return(&oracle.ApprovalValidation{Valid: true}, nil)

	app, _ := setupTestApp(t, mockOracle)

	resp, body := postJSON(t, app, "/plans/plan-1/extract", web.ExtractPlanRequest{
		AnalysisID:   "analysis-1",
		TranscriptID: "transcript-1",
		Borrower:     []models.PlanItem{{"action": "send payoff quote"}},
		Supervisor:   []models.PlanItem{{"action": "waive late fee"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var extracted extraction.Result

	require.NoError(t, json.Unmarshal(body, &extracted))
	require.Len(t, extracted.Workflows, 2)

	var lowID, highID string

	for _, workflow := range extracted.Workflows {
		switch workflow.RiskLevel {
		case models.RiskLevelLow:
			lowID = workflow.ID

			assert.Equal(t, models.StatusAutoApproved, workflow.Status)
			assert.False(t, workflow.RequiresHumanApproval)
		case models.RiskLevelHigh:
			highID = workflow.ID

			assert.Equal(t, models.StatusAwaitingApproval, workflow.Status)
			assert.True(t, workflow.RequiresHumanApproval)
		}
	}

	require.NotEmpty(t, lowID)
	require.NotEmpty(t, highID)

	// The LOW workflow executes straight away.
	resp, body = postJSON(t, app, "/workflows/"+lowID+"/execute", web.ExecuteWorkflowRequest{ExecutedBy: "worker"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var summary execution.Summary

	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, models.ExecutionStatusExecuted, summary.Status)

	// The HIGH workflow cannot execute while held.
	resp, _ = postJSON(t, app, "/workflows/"+highID+"/execute", web.ExecuteWorkflowRequest{ExecutedBy: "worker"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Approve it, then execute.
	resp, body = postJSON(t, app, "/workflows/"+highID+"/approve", web.ApproveWorkflowRequest{Approver: "jordan", Reasoning: "fee was our error"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var approved models.Workflow

	require.NoError(t, json.Unmarshal(body, &approved))
	assert.Equal(t, models.StatusAutoApproved, approved.Status)

	resp, body = postJSON(t, app, "/workflows/"+highID+"/execute", web.ExecuteWorkflowRequest{ExecutedBy: "worker"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// A second approval attempt hits the precondition check.
	resp, _ = postJSON(t, app, "/workflows/"+highID+"/approve", web.ApproveWorkflowRequest{Approver: "jordan"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The audit trail replays the full path.
	resp, body = getJSON(t, app, "/workflows/"+highID+"/transitions")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var transitionsResp struct {
		Transitions []*models.TransitionRecord `json:"transitions"`
	}

	require.NoError(t, json.Unmarshal(body, &transitionsResp))
	require.Len(t, transitionsResp.Transitions, 3)
	assert.Equal(t, models.StatusAwaitingApproval, transitionsResp.Transitions[0].ToStatus)
	assert.Equal(t, models.StatusAutoApproved, transitionsResp.Transitions[1].ToStatus)
	assert.Equal(t, models.StatusExecuted, transitionsResp.Transitions[2].ToStatus)
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _ := setupTestApp(t, &mocks.MockOracle{})

	resp, _ := getJSON(t, app, "/workflows/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflowsRequiresAFilter(t *testing.T) {
	app, _ := setupTestApp(t, &mocks.MockOracle{})

	resp, _ := getJSON(t, app, "/workflows")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = getJSON(t, app, "/workflows?status=NOT_A_STATUS")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExtractPlanValidatesRequest(t *testing.T) {
	app, _ := setupTestApp(t, &mocks.MockOracle{})

	resp, _ := postJSON(t, app, "/plans/plan-1/extract", map[string]any{
		"transcript_id": "transcript-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRejectWorkflowOverHTTP(t *testing.T) {
	mockOracle := &mocks.MockOracle{}
	mockOracle.On("ValidateRejection", mock.Anything, mock.Anything, "jordan", "duplicate", mock.Anything).
		Return(&oracle.RejectionValidation{Valid: true}, nil)

	app, workflowStore := setupTestApp(t, mockOracle)

	id, err := workflowStore.Create(t.Context(), &models.Workflow{
		PlanID:       "plan-1",
		AnalysisID:   "analysis-1",
		TranscriptID: "transcript-1",
		Type:         models.WorkflowTypeAdvisor,
		Data: models.WorkflowData{
			Version:           models.WorkflowDataVersion,
			ActionDescription: "schedule follow-up",
		},
		RiskLevel:             models.RiskLevelMedium,
		Status:                models.StatusAwaitingApproval,
		RequiresHumanApproval: true,
	})
	require.NoError(t, err)

	resp, body := postJSON(t, app, "/workflows/"+id+"/reject", web.RejectWorkflowRequest{Rejector: "jordan", Reason: "duplicate"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rejected models.Workflow

	require.NoError(t, json.Unmarshal(body, &rejected))
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate", rejected.RejectionReason)
}
