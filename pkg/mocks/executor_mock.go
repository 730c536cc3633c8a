package mocks

import (
	"context"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/verdantlabs/greenlight/pkg/protocol"
)

// MockExecutor is a mock implementation of the protocol.Executor interface.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (map[string]any, error) {
	args := m.Called(ctx, req, logger)

	if payload := args.Get(0); payload != nil {
		return payload.(map[string]any), args.Error(1)
	}

	return nil, args.Error(1)
}

// MockExecutorFactory is a mock implementation of protocol.ExecutorFactory.
type MockExecutorFactory struct {
	mock.Mock
}

func (m *MockExecutorFactory) Create(config map[string]any) (protocol.Executor, error) {
	args := m.Called(config)

	if executor := args.Get(0); executor != nil {
		return executor.(protocol.Executor), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockExecutorFactory) Name() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockExecutorFactory) Schema() *models.JSONSchema {
	args := m.Called()

	if schema := args.Get(0); schema != nil {
		return schema.(*models.JSONSchema)
	}

	return nil
}
