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
	"github.com/verdantlabs/greenlight/pkg/persistence"
)

// WorkflowRepository handles workflow and transition-record file operations.
type WorkflowRepository struct {
	root string
	mu   *sync.RWMutex
}

func (wr *WorkflowRepository) workflowPath(id string) string {
	return filepath.Clean(path.Join(wr.root, "workflows", id+".json"))
}

func (wr *WorkflowRepository) transitionsPath(id string) string {
	return filepath.Clean(path.Join(wr.root, "transitions", id+".json"))
}

// Create persists one workflow plus its initial transition record. The
// transition file write is rolled back together with the workflow file if
// either fails.
func (wr *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) (string, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	ids, err := wr.createLocked(ctx, []*models.Workflow{workflow})
	if err != nil {
		return "", err
	}

	return ids[0], nil
}

// CreateBulk persists the whole batch as one atomic unit: every item is
// validated before any write, and written files are removed again if a later
// write fails.
func (wr *WorkflowRepository) CreateBulk(ctx context.Context, workflows []*models.Workflow) ([]string, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.createLocked(ctx, workflows)
}

func (wr *WorkflowRepository) createLocked(_ context.Context, workflows []*models.Workflow) ([]string, error) {
	for _, workflow := range workflows {
		if err := persistence.ValidateForCreate(workflow); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{"workflows", "transitions"} {
		if err := os.MkdirAll(path.Join(wr.root, dir), 0750); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	now := time.Now().UTC()
	written := make([]string, 0, len(workflows)*2)
	ids := make([]string, 0, len(workflows))

	rollback := func() {
		for _, p := range written {
			_ = os.Remove(p)
		}
	}

	for _, workflow := range workflows {
		if workflow.ID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				rollback()

				return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
			}

			workflow.ID = id.String()
		}

		if _, err := os.Stat(wr.workflowPath(workflow.ID)); err == nil {
			rollback()

			return nil, persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		workflow.CreatedAt = now
		workflow.UpdatedAt = now

		if err := wr.writeWorkflow(workflow); err != nil {
			rollback()

			return nil, err
		}

		written = append(written, wr.workflowPath(workflow.ID))

		record := &models.TransitionRecord{
			ID:             uuid.New().String(),
			WorkflowID:     workflow.ID,
			FromStatus:     nil,
			ToStatus:       workflow.Status,
			Reason:         "workflow created",
			TransitionedBy: "system",
			Timestamp:      now,
		}

		if err := wr.appendTransition(record); err != nil {
			rollback()

			return nil, err
		}

		written = append(written, wr.transitionsPath(workflow.ID))
		ids = append(ids, workflow.ID)
	}

	return ids, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return wr.readWorkflow(id)
}

func (wr *WorkflowRepository) GetByPlan(ctx context.Context, planID string) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool {
		return w.PlanID == planID
	})
}

func (wr *WorkflowRepository) GetByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool {
		return w.Status == status
	})
}

func (wr *WorkflowRepository) GetByRiskLevel(ctx context.Context, level models.RiskLevel) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool {
		return w.RiskLevel == level
	})
}

func (wr *WorkflowRepository) GetByTypeAndPlan(ctx context.Context, workflowType models.WorkflowType, planID string) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool {
		return w.Type == workflowType && w.PlanID == planID
	})
}

// UpdateStatus applies one state-machine edge under the write lock: read
// current status, verify the edge, apply extra fields, append the transition
// record. The workflow file is restored if the record append fails.
func (wr *WorkflowRepository) UpdateStatus(_ context.Context, id string, newStatus models.WorkflowStatus, transitionedBy, reason string, extra *persistence.StatusUpdate) error {
	if !newStatus.IsValid() {
		return &persistence.ValidationError{WorkflowID: id, Field: "status", Detail: "unknown status " + string(newStatus)}
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.readWorkflow(id)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrWorkflowNotFound)
	}

	if !models.CanTransition(workflow.Status, newStatus) {
		return &persistence.TransitionError{WorkflowID: id, From: workflow.Status, To: newStatus}
	}

	previous, err := os.ReadFile(wr.workflowPath(id))
	if err != nil {
		return fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	now := time.Now().UTC()
	fromStatus := workflow.Status

	persistence.ApplyStatusUpdate(workflow, extra)
	workflow.Status = newStatus
	workflow.UpdatedAt = now

	if err := wr.writeWorkflow(workflow); err != nil {
		return err
	}

	record := &models.TransitionRecord{
		ID:             uuid.New().String(),
		WorkflowID:     id,
		FromStatus:     &fromStatus,
		ToStatus:       newStatus,
		Reason:         reason,
		TransitionedBy: transitionedBy,
		Timestamp:      now,
	}

	if err := wr.appendTransition(record); err != nil {
		_ = os.WriteFile(wr.workflowPath(id), previous, 0600)

		return err
	}

	return nil
}

// Transitions returns the workflow's transition records oldest first.
func (wr *WorkflowRepository) Transitions(_ context.Context, id string) ([]*models.TransitionRecord, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	records, err := wr.readTransitions(id)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

func (wr *WorkflowRepository) filter(_ context.Context, keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	root := os.DirFS(path.Join(wr.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, f := range jsonFiles {
		workflow, err := wr.readWorkflow(f[:len(f)-5])
		if err != nil {
			return nil, err
		}

		if workflow != nil && keep(workflow) {
			workflows = append(workflows, workflow)
		}
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) readWorkflow(id string) (*models.Workflow, error) {
	body, err := os.ReadFile(wr.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) writeWorkflow(workflow *models.Workflow) error {
	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	return os.WriteFile(wr.workflowPath(workflow.ID), data, 0600)
}

func (wr *WorkflowRepository) readTransitions(id string) ([]*models.TransitionRecord, error) {
	body, err := os.ReadFile(wr.transitionsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.TransitionRecord, 0), nil
		}

		return nil, fmt.Errorf("failed to fetch transitions for workflow %s: %w", id, err)
	}

	var records []*models.TransitionRecord

	err = json.Unmarshal(body, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal transitions for workflow %s: %w", id, err)
	}

	return records, nil
}

func (wr *WorkflowRepository) appendTransition(record *models.TransitionRecord) error {
	records, err := wr.readTransitions(record.WorkflowID)
	if err != nil {
		return err
	}

	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transitions for workflow %s: %w", record.WorkflowID, err)
	}

	return os.WriteFile(wr.transitionsPath(record.WorkflowID), data, 0600)
}
