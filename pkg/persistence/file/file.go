// Package file provides file-based persistence for workflows, transition
// records, and execution records. Intended for local development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/verdantlabs/greenlight/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. A single write lock serializes all mutations, which also
// satisfies the per-workflow UpdateStatus serialization contract.
type Persistence struct {
	root          string
	mu            sync.RWMutex
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRecordRepository
}

// NewPersistence creates a new instance rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{root: cleanRoot, mu: &p.mu}
	p.executionRepo = &ExecutionRecordRepository{root: cleanRoot, mu: &p.mu}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRecordRepository() persistence.ExecutionRecordRepository {
	return p.executionRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
