package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/persistence"
)

const workflowColumns = `
	id
  , plan_id
  , analysis_id
  , transcript_id
  , workflow_type
  , workflow_data
  , risk_level
  , risk_reasoning
  , status
  , requires_human_approval
  , assigned_approver
  , approved_by
  , approved_at
  , rejected_by
  , rejected_at
  , rejection_reason
  , executed_at
  , execution_results
  , created_at
  , updated_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create persists one workflow plus its initial transition record in a
// single transaction.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) (string, error) {
	ids, err := r.CreateBulk(ctx, []*models.Workflow{workflow})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

// CreateBulk persists the whole batch in one transaction: if any item fails
// validation or insertion, the transaction rolls back and zero items persist.
func (r *WorkflowRepository) CreateBulk(ctx context.Context, workflows []*models.Workflow) ([]string, error) {
	for _, workflow := range workflows {
		if err := persistence.ValidateForCreate(workflow); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	ids := make([]string, 0, len(workflows))

	for _, workflow := range workflows {
		if workflow.ID == "" {
			var id uuid.UUID

			id, err = uuid.NewV7()
			if err != nil {
				return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
			}

			workflow.ID = id.String()
		}

		workflow.CreatedAt = now
		workflow.UpdatedAt = now

		err = r.insertWorkflow(ctx, tx, workflow)
		if err != nil {
			return nil, err
		}

		err = r.insertTransition(ctx, tx, &models.TransitionRecord{
			ID:             uuid.New().String(),
			WorkflowID:     workflow.ID,
			FromStatus:     nil,
			ToStatus:       workflow.Status,
			Reason:         "workflow created",
			TransitionedBy: "system",
			Timestamp:      now,
		})
		if err != nil {
			return nil, err
		}

		ids = append(ids, workflow.ID)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit workflow batch: %w", err)
	}

	return ids, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) GetByPlan(ctx context.Context, planID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE plan_id = $1 ORDER BY created_at`

	return r.queryWorkflows(ctx, query, planID)
}

func (r *WorkflowRepository) GetByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE status = $1 ORDER BY created_at`

	return r.queryWorkflows(ctx, query, string(status))
}

func (r *WorkflowRepository) GetByRiskLevel(ctx context.Context, level models.RiskLevel) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE risk_level = $1 ORDER BY created_at`

	return r.queryWorkflows(ctx, query, string(level))
}

func (r *WorkflowRepository) GetByTypeAndPlan(ctx context.Context, workflowType models.WorkflowType, planID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE workflow_type = $1 AND plan_id = $2 ORDER BY created_at`

	return r.queryWorkflows(ctx, query, string(workflowType), planID)
}

// UpdateStatus applies one state-machine edge in a transaction. The row is
// locked with SELECT ... FOR UPDATE, which serializes concurrent calls per
// workflow id: the second caller sees the already-updated status and fails
// the edge check.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, newStatus models.WorkflowStatus, transitionedBy, reason string, extra *persistence.StatusUpdate) error {
	if !newStatus.IsValid() {
		return &persistence.ValidationError{WorkflowID: id, Field: "status", Detail: "unknown status " + string(newStatus)}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.WorkflowStatus

	err = tx.QueryRowContext(ctx, `SELECT status FROM workflows WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrWorkflowNotFound)
		} else {
			err = fmt.Errorf("failed to lock workflow %s: %w", id, err)
		}

		return err
	}

	if !models.CanTransition(current, newStatus) {
		err = &persistence.TransitionError{WorkflowID: id, From: current, To: newStatus}

		return err
	}

	now := time.Now().UTC()

	var update persistence.StatusUpdate
	if extra != nil {
		update = *extra
	}

	var resultsJSON []byte
	if update.ExecutionResults != nil {
		resultsJSON, err = json.Marshal(update.ExecutionResults)
		if err != nil {
			err = fmt.Errorf("failed to marshal execution results: %w", err)

			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows SET
			status = $2
		  , approved_by = COALESCE($3, approved_by)
		  , approved_at = COALESCE($4, approved_at)
		  , rejected_by = COALESCE($5, rejected_by)
		  , rejected_at = COALESCE($6, rejected_at)
		  , rejection_reason = COALESCE(NULLIF($7, ''), rejection_reason)
		  , executed_at = COALESCE($8, executed_at)
		  , execution_results = COALESCE($9, execution_results)
		  , updated_at = $10
		WHERE id = $1
	`, id, string(newStatus), update.ApprovedBy, update.ApprovedAt, update.RejectedBy,
		update.RejectedAt, update.RejectionReason, update.ExecutedAt, nullableJSON(resultsJSON), now)
	if err != nil {
		err = fmt.Errorf("failed to update workflow %s status: %w", id, err)

		return err
	}

	err = r.insertTransition(ctx, tx, &models.TransitionRecord{
		ID:             uuid.New().String(),
		WorkflowID:     id,
		FromStatus:     &current,
		ToStatus:       newStatus,
		Reason:         reason,
		TransitionedBy: transitionedBy,
		Timestamp:      now,
	})
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit status update for workflow %s: %w", id, err)
	}

	return nil
}

// Transitions returns the workflow's transition records oldest first.
func (r *WorkflowRepository) Transitions(ctx context.Context, id string) ([]*models.TransitionRecord, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , from_status
		  , to_status
		  , reason
		  , transitioned_by
		  , transitioned_at
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions for workflow %s: %w", id, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("failed to close rows", "error", err)
		}
	}()

	records := make([]*models.TransitionRecord, 0)

	for rows.Next() {
		record := &models.TransitionRecord{}

		var fromStatus sql.NullString

		err = rows.Scan(&record.ID, &record.WorkflowID, &fromStatus, &record.ToStatus,
			&record.Reason, &record.TransitionedBy, &record.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition record: %w", err)
		}

		if fromStatus.Valid {
			status := models.WorkflowStatus(fromStatus.String)
			record.FromStatus = &status
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transition records: %w", err)
	}

	return records, nil
}

func (r *WorkflowRepository) insertWorkflow(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	dataJSON, err := json.Marshal(workflow.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow data: %w", err)
	}

	var resultsJSON []byte
	if workflow.ExecutionResults != nil {
		resultsJSON, err = json.Marshal(workflow.ExecutionResults)
		if err != nil {
			return fmt.Errorf("failed to marshal execution results: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (
			id, plan_id, analysis_id, transcript_id, workflow_type, workflow_data,
			risk_level, risk_reasoning, status, requires_human_approval,
			assigned_approver, approved_by, approved_at, rejected_by, rejected_at,
			rejection_reason, executed_at, execution_results, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, workflow.ID, workflow.PlanID, workflow.AnalysisID, workflow.TranscriptID,
		string(workflow.Type), dataJSON, string(workflow.RiskLevel), workflow.RiskReasoning,
		string(workflow.Status), workflow.RequiresHumanApproval,
		nullableString(workflow.AssignedApprover), workflow.ApprovedBy, workflow.ApprovedAt,
		workflow.RejectedBy, workflow.RejectedAt, nullableString(workflow.RejectionReason),
		workflow.ExecutedAt, nullableJSON(resultsJSON), workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) insertTransition(ctx context.Context, tx *sql.Tx, record *models.TransitionRecord) error {
	var fromStatus any
	if record.FromStatus != nil {
		fromStatus = string(*record.FromStatus)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_transitions (
			id, workflow_id, from_status, to_status, reason, transitioned_by, transitioned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ID, record.WorkflowID, fromStatus, string(record.ToStatus),
		record.Reason, record.TransitionedBy, record.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transition record for workflow %s: %w", record.WorkflowID, err)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	workflow := &models.Workflow{}

	var (
		dataJSON         []byte
		resultsJSON      []byte
		assignedApprover sql.NullString
		rejectionReason  sql.NullString
		riskReasoning    sql.NullString
	)

	err := row.Scan(&workflow.ID, &workflow.PlanID, &workflow.AnalysisID, &workflow.TranscriptID,
		&workflow.Type, &dataJSON, &workflow.RiskLevel, &riskReasoning, &workflow.Status,
		&workflow.RequiresHumanApproval, &assignedApprover, &workflow.ApprovedBy,
		&workflow.ApprovedAt, &workflow.RejectedBy, &workflow.RejectedAt, &rejectionReason,
		&workflow.ExecutedAt, &resultsJSON, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	workflow.RiskReasoning = riskReasoning.String
	workflow.AssignedApprover = assignedApprover.String
	workflow.RejectionReason = rejectionReason.String

	if err := json.Unmarshal(dataJSON, &workflow.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow data: %w", err)
	}

	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &workflow.ExecutionResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution results: %w", err)
		}
	}

	return workflow, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return b
}
