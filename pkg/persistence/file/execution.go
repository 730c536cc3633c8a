package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verdantlabs/greenlight/pkg/models"
)

// ExecutionRecordRepository stores append-only execution records, one JSON
// array file per workflow.
type ExecutionRecordRepository struct {
	root string
	mu   *sync.RWMutex
}

func (er *ExecutionRecordRepository) recordsPath(workflowID string) string {
	return filepath.Clean(path.Join(er.root, "executions", workflowID+".json"))
}

func (er *ExecutionRecordRepository) Save(_ context.Context, record *models.ExecutionRecord) error {
	if record.WorkflowID == "" {
		return fmt.Errorf("execution record requires a workflow id")
	}

	if !record.Status.IsValid() {
		return fmt.Errorf("execution record has unknown status %q", record.Status)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(path.Join(er.root, "executions"), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution record ID: %w", err)
		}

		record.ID = id.String()
	}

	records, err := er.read(record.WorkflowID)
	if err != nil {
		return err
	}

	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution records for workflow %s: %w", record.WorkflowID, err)
	}

	return os.WriteFile(er.recordsPath(record.WorkflowID), data, 0600)
}

func (er *ExecutionRecordRepository) GetByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	records, err := er.read(workflowID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExecutedAt.Before(records[j].ExecutedAt)
	})

	return records, nil
}

// DeleteOlderThan drops records executed before the cutoff, rewriting each
// workflow's record file and removing files left empty.
func (er *ExecutionRecordRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	root := os.DirFS(path.Join(er.root, "executions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return 0, fmt.Errorf("failed to list execution record files: %w", err)
	}

	var removed int64

	for _, f := range jsonFiles {
		workflowID := f[:len(f)-5]

		records, err := er.read(workflowID)
		if err != nil {
			return removed, err
		}

		kept := make([]*models.ExecutionRecord, 0, len(records))

		for _, record := range records {
			if record.ExecutedAt.Before(cutoff) {
				removed++

				continue
			}

			kept = append(kept, record)
		}

		if len(kept) == len(records) {
			continue
		}

		if len(kept) == 0 {
			if err := os.Remove(er.recordsPath(workflowID)); err != nil {
				return removed, fmt.Errorf("failed to remove execution records for workflow %s: %w", workflowID, err)
			}

			continue
		}

		data, err := json.MarshalIndent(kept, "", "  ")
		if err != nil {
			return removed, fmt.Errorf("failed to marshal execution records for workflow %s: %w", workflowID, err)
		}

		if err := os.WriteFile(er.recordsPath(workflowID), data, 0600); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

func (er *ExecutionRecordRepository) read(workflowID string) ([]*models.ExecutionRecord, error) {
	body, err := os.ReadFile(er.recordsPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.ExecutionRecord, 0), nil
		}

		return nil, fmt.Errorf("failed to fetch execution records for workflow %s: %w", workflowID, err)
	}

	var records []*models.ExecutionRecord

	err = json.Unmarshal(body, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution records for workflow %s: %w", workflowID, err)
	}

	return records, nil
}
