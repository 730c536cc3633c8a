package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/verdantlabs/greenlight/pkg/models"
)

// ExecutionRecordRepository handles execution record database operations.
// Records are append-only: there is no update path.
type ExecutionRecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRecordRepository creates a new execution record repository.
func NewExecutionRecordRepository(db *sql.DB, logger *slog.Logger) *ExecutionRecordRepository {
	return &ExecutionRecordRepository{db: db, logger: logger}
}

func (r *ExecutionRecordRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	if record.WorkflowID == "" {
		return fmt.Errorf("execution record requires a workflow id")
	}

	if !record.Status.IsValid() {
		return fmt.Errorf("execution record has unknown status %q", record.Status)
	}

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution record ID: %w", err)
		}

		record.ID = id.String()
	}

	var payloadJSON []byte

	if record.Payload != nil {
		var err error

		payloadJSON, err = json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal execution record payload: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_records (
			id, workflow_id, step_number, executor_name, payload,
			execution_status, executed_at, executed_by, duration_ns, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, record.ID, record.WorkflowID, record.StepNumber, record.ExecutorName,
		nullableJSON(payloadJSON), string(record.Status), record.ExecutedAt,
		record.ExecutedBy, record.Duration.Nanoseconds(), nullableString(record.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to insert execution record for workflow %s: %w", record.WorkflowID, err)
	}

	return nil
}

func (r *ExecutionRecordRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , step_number
		  , executor_name
		  , payload
		  , execution_status
		  , executed_at
		  , executed_by
		  , duration_ns
		  , error_message
		FROM execution_records
		WHERE workflow_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records for workflow %s: %w", workflowID, err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record := &models.ExecutionRecord{}

		var (
			stepNumber   sql.NullInt64
			payloadJSON  []byte
			durationNS   int64
			errorMessage sql.NullString
		)

		err = rows.Scan(&record.ID, &record.WorkflowID, &stepNumber, &record.ExecutorName,
			&payloadJSON, &record.Status, &record.ExecutedAt, &record.ExecutedBy,
			&durationNS, &errorMessage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		if stepNumber.Valid {
			n := int(stepNumber.Int64)
			record.StepNumber = &n
		}

		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &record.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution record payload: %w", err)
			}
		}

		record.Duration = time.Duration(durationNS)
		record.ErrorMessage = errorMessage.String

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes records executed before the cutoff.
func (r *ExecutionRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM execution_records WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged execution records: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted execution records: %w", err)
	}

	return removed, nil
}
