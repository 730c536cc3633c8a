// Package web provides HTTP handlers and REST API endpoints for workflow
// lifecycle management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/verdantlabs/greenlight/pkg/approval"
	"github.com/verdantlabs/greenlight/pkg/execution"
	"github.com/verdantlabs/greenlight/pkg/extraction"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
)

type APIHandlers struct {
	store        *store.Store
	orchestrator *extraction.Orchestrator
	gateway      *approval.Gateway
	engine       *execution.Engine
	registry     *registry.Registry
	validator    *validator.Validate
}

func NewAPIHandlers(
	s *store.Store,
	orchestrator *extraction.Orchestrator,
	gateway *approval.Gateway,
	engine *execution.Engine,
	reg *registry.Registry,
	v *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:        s,
		orchestrator: orchestrator,
		gateway:      gateway,
		engine:       engine,
		registry:     reg,
		validator:    v,
	}
}

// RegisterRoutes mounts all endpoints on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/executors", h.GetExecutors)

	app.Post("/plans/:id/extract", h.ExtractPlan)

	app.Get("/workflows", h.GetWorkflows)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Get("/workflows/:id/transitions", h.GetTransitions)
	app.Get("/workflows/:id/executions", h.GetExecutionRecords)
	app.Post("/workflows/:id/approve", h.ApproveWorkflow)
	app.Post("/workflows/:id/reject", h.RejectWorkflow)
	app.Post("/workflows/:id/execute", h.ExecuteWorkflow)
}

func (h *APIHandlers) ExtractPlan(c fiber.Ctx) error {
	planID := c.Params("id")
	if planID == "" {
		return badRequest(c, "Plan ID is required")
	}

	var req ExtractPlanRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.ExtractPlan(c.Context(), req.Plan(planID), req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	ctx := c.Context()
	planID := c.Query("plan_id")

	switch {
	case c.Query("workflow_type") != "" && planID != "":
		workflowType := models.WorkflowType(c.Query("workflow_type"))
		if !workflowType.IsValid() {
			return badRequest(c, "Unknown workflow_type: "+c.Query("workflow_type"))
		}

		workflows, err := h.store.GetByTypeAndPlan(ctx, workflowType, planID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"workflows": workflows})

	case planID != "":
		workflows, err := h.store.GetByPlan(ctx, planID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"workflows": workflows})

	case c.Query("status") != "":
		status := models.WorkflowStatus(c.Query("status"))
		if !status.IsValid() {
			return badRequest(c, "Unknown status: "+c.Query("status"))
		}

		workflows, err := h.store.GetByStatus(ctx, status)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"workflows": workflows})

	case c.Query("risk_level") != "":
		level := models.RiskLevel(c.Query("risk_level"))
		if !level.IsValid() {
			return badRequest(c, "Unknown risk_level: "+c.Query("risk_level"))
		}

		workflows, err := h.store.GetByRiskLevel(ctx, level)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"workflows": workflows})

	default:
		return badRequest(c, "One of plan_id, status, or risk_level is required")
	}
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetTransitions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.store.GetByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	transitions, err := h.store.Transitions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"transitions": transitions})
}

func (h *APIHandlers) GetExecutionRecords(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.store.GetByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	records, err := h.store.ExecutionRecords(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records})
}

func (h *APIHandlers) ApproveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ApproveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.gateway.Approve(c.Context(), id, req.Approver, req.Reasoning, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) RejectWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RejectWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.gateway.Reject(c.Context(), id, req.Rejector, req.Reason, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.engine.ExecuteWorkflow(c.Context(), id, req.ExecutedBy, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetExecutors(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"executors": h.registry.RegisteredExecutors()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.store.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Greenlight API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Greenlight API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
