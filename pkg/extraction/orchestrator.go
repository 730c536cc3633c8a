// Package extraction turns one upstream plan into many workflow records. The
// four plan sections run concurrently and independently; within a section
// every item runs concurrently. One item's failure never aborts siblings or
// other sections, and everything that succeeded is committed in a single
// atomic bulk create.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/store"
)

// ErrExtractionFailed indicates every section of the plan failed; nothing
// was persisted.
var ErrExtractionFailed = errors.New("extraction failed for every plan section")

type Orchestrator struct {
	oracle oracle.Oracle
	store  *store.Store
	logger *slog.Logger
}

func NewOrchestrator(o oracle.Oracle, s *store.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		oracle: o,
		store:  s,
		logger: logger.With("module", "extraction_orchestrator"),
	}
}

// ItemFailure describes one item that could not be turned into a workflow.
type ItemFailure struct {
	Section   models.WorkflowType `json:"section"`
	ItemIndex int                 `json:"item_index"`
	Stage     string              `json:"stage"` // extract, assess_risk, route, or validate
	Reason    string              `json:"reason"`
}

// SectionReport summarizes one section's outcome.
type SectionReport struct {
	Section  models.WorkflowType `json:"section"`
	Total    int                 `json:"total"`
	Failed   int                 `json:"failed"`
	Failures []ItemFailure       `json:"failures,omitempty"`
}

// WhollyFailed reports whether every item in a non-empty section failed.
func (r SectionReport) WhollyFailed() bool {
	return r.Total > 0 && r.Failed == r.Total
}

// FailureReport collects per-section failures. It is part of the result, not
// an error: partial failure is reported inline.
type FailureReport struct {
	Sections []SectionReport `json:"sections"`
}

// HasFailures reports whether any item anywhere failed.
func (r FailureReport) HasFailures() bool {
	for _, section := range r.Sections {
		if section.Failed > 0 {
			return true
		}
	}

	return false
}

// Result is the extraction outcome: persisted workflows (with ids) plus the
// structured failure report.
type Result struct {
	Workflows []*models.Workflow `json:"workflows"`
	Report    FailureReport      `json:"report"`
}

// itemOutcome is produced by exactly one item task; no outcome is shared
// between tasks.
type itemOutcome struct {
	workflow *models.Workflow
	failure  *ItemFailure
}

// ExtractPlan fans out over the plan's sections and items, waits for all
// tasks to settle, then commits every successful workflow in one atomic bulk
// create. It returns an error only if every non-empty section failed.
func (o *Orchestrator) ExtractPlan(ctx context.Context, plan *models.Plan, oc oracle.Context) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "Starting plan extraction",
		"plan_id", plan.ID, "items", plan.ItemCount())

	sections := plan.Sections()

	type sectionOutcome struct {
		section  models.WorkflowType
		outcomes []itemOutcome
	}

	outcomes := make(chan sectionOutcome, len(sections))

	var wg sync.WaitGroup

	for section, items := range sections {
		wg.Add(1)

		go func(section models.WorkflowType, items []models.PlanItem) {
			defer wg.Done()

			outcomes <- sectionOutcome{
				section:  section,
				outcomes: o.extractSection(ctx, plan, section, items, oc),
			}
		}(section, items)
	}

	wg.Wait()
	close(outcomes)

	workflows := make([]*models.Workflow, 0, plan.ItemCount())
	report := FailureReport{Sections: make([]SectionReport, 0, len(sections))}
	whollyFailed := 0
	nonEmpty := 0

	for so := range outcomes {
		sectionReport := SectionReport{Section: so.section, Total: len(so.outcomes)}

		for _, outcome := range so.outcomes {
			if outcome.failure != nil {
				sectionReport.Failed++
				sectionReport.Failures = append(sectionReport.Failures, *outcome.failure)

				continue
			}

			workflows = append(workflows, outcome.workflow)
		}

		if sectionReport.Total > 0 {
			nonEmpty++
		}

		if sectionReport.WhollyFailed() {
			whollyFailed++

			o.logger.ErrorContext(ctx, "Plan section wholly failed",
				"plan_id", plan.ID, "section", so.section, "items", sectionReport.Total)
		}

		report.Sections = append(report.Sections, sectionReport)
	}

	if nonEmpty > 0 && whollyFailed == nonEmpty {
		return nil, ErrExtractionFailed
	}

	if report.HasFailures() {
		o.logger.WarnContext(ctx, "Plan extraction completed with failures",
			"plan_id", plan.ID, "succeeded", len(workflows))
	}

	if len(workflows) > 0 {
		if _, err := o.store.CreateBulk(ctx, workflows); err != nil {
			return nil, err
		}
	}

	o.logger.InfoContext(ctx, "Plan extraction committed",
		"plan_id", plan.ID, "workflows", len(workflows))

	return &Result{Workflows: workflows, Report: report}, nil
}

// extractSection runs every item of one section concurrently and waits for
// all of them. Outcomes land in a pre-sized slice so item order is kept.
func (o *Orchestrator) extractSection(ctx context.Context, plan *models.Plan, section models.WorkflowType, items []models.PlanItem, oc oracle.Context) []itemOutcome {
	outcomes := make([]itemOutcome, len(items))

	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)

		go func(i int, item models.PlanItem) {
			defer wg.Done()

			outcomes[i] = o.extractItem(ctx, plan, section, i, item, oc)
		}(i, item)
	}

	wg.Wait()

	return outcomes
}

// extractItem runs the three-stage oracle pipeline for one item: structure,
// assess risk, then route. Risk and routing are sequential because routing
// consumes the risk result.
func (o *Orchestrator) extractItem(ctx context.Context, plan *models.Plan, section models.WorkflowType, index int, item models.PlanItem, oc oracle.Context) itemOutcome {
	fail := func(stage string, err error) itemOutcome {
		o.logger.WarnContext(ctx, "Plan item extraction failed",
			"plan_id", plan.ID, "section", section, "item_index", index,
			"stage", stage, "error", err)

		return itemOutcome{failure: &ItemFailure{
			Section:   section,
			ItemIndex: index,
			Stage:     stage,
			Reason:    err.Error(),
		}}
	}

	structured, err := o.oracle.ExtractActionItem(ctx, item, section, oc)
	if err != nil {
		return fail("extract", oracle.NewOracleError("ExtractActionItem", "", err))
	}

	risk, err := o.oracle.AssessRisk(ctx, structured, oc)
	if err != nil {
		return fail("assess_risk", oracle.NewOracleError("AssessRisk", "", err))
	}

	if !risk.RiskLevel.IsValid() {
		return fail("assess_risk", oracle.NewOracleError("AssessRisk", "",
			errors.New("oracle returned unknown risk level "+string(risk.RiskLevel))))
	}

	routing, err := o.oracle.DetermineApprovalRouting(ctx, structured, risk, oc)
	if err != nil {
		return fail("route", oracle.NewOracleError("DetermineApprovalRouting", "", err))
	}

	if !validInitialStatus(routing.InitialStatus) {
		return fail("route", oracle.NewOracleError("DetermineApprovalRouting", "",
			errors.New("oracle returned unusable initial status "+string(routing.InitialStatus))))
	}

	workflow := &models.Workflow{
		PlanID:       plan.ID,
		AnalysisID:   plan.AnalysisID,
		TranscriptID: plan.TranscriptID,
		Type:         section,
		Data: models.WorkflowData{
			Version:           models.WorkflowDataVersion,
			ActionDescription: structured.ActionDescription,
			Steps:             structured.Steps,
			Metadata:          structured.Metadata,
		},
		RiskLevel:             risk.RiskLevel,
		RiskReasoning:         risk.Reasoning,
		Status:                routing.InitialStatus,
		RequiresHumanApproval: routing.RequiresHumanApproval,
	}

	// A structurally unusable oracle result fails this item here, so it can
	// never poison the bulk create shared with its siblings.
	if err := persistence.ValidateForCreate(workflow); err != nil {
		return fail("validate", oracle.NewOracleError("ExtractActionItem", "", err))
	}

	return itemOutcome{workflow: workflow}
}

// validInitialStatus limits routing results to the statuses a workflow may
// start in.
func validInitialStatus(status models.WorkflowStatus) bool {
	switch status {
	case models.StatusPendingAssessment, models.StatusAwaitingApproval, models.StatusAutoApproved:
		return true
	default:
		return false
	}
}
