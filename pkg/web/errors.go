package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/verdantlabs/greenlight/pkg/approval"
	"github.com/verdantlabs/greenlight/pkg/execution"
	"github.com/verdantlabs/greenlight/pkg/extraction"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the error taxonomy to RFC 7807 responses:
// validation 400, not found 404, state violation 409, unusable decision 422,
// collaborator failure 502.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsInvalidWorkflow(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case persistence.IsInvalidTransition(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("state_violation").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, approval.ErrApprovalVetoed):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("approval_vetoed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case errors.Is(err, execution.ErrLowConfidence):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("low_confidence").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case errors.Is(err, extraction.ErrExtractionFailed):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("extraction_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	case oracle.IsCollaboratorError(err):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("collaborator_failure").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
