package registry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenlight/pkg/mocks"
	"github.com/verdantlabs/greenlight/pkg/models"
)

func newFactory(name string, schema *models.JSONSchema) *mocks.MockExecutorFactory {
	factory := &mocks.MockExecutorFactory{}
	factory.On("Name").Return(name)
	factory.On("Schema").Return(schema)
	factory.On("Create", mock.Anything).Return(&mocks.MockExecutor{}, nil)

	return factory
}

func TestCreateExecutorResolvesByExactName(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(newFactory("log", nil))

	executor, err := reg.CreateExecutor("log", nil)
	require.NoError(t, err)
	assert.NotNil(t, executor)

	_, err = reg.CreateExecutor("LOG", nil)
	require.Error(t, err, "resolution is by exact name")

	_, err = reg.CreateExecutor("unknown", nil)
	require.Error(t, err)
}

func TestValidateStepParameters(t *testing.T) {
	schema := &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"url":    {Type: "string"},
			"method": {Type: "string", Enum: []any{"GET", "POST"}},
		},
		Required: []string{"url"},
	}

	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(newFactory("http_call", schema))
	reg.RegisterExecutor(newFactory("log", nil))

	assert.NoError(t, reg.ValidateStepParameters("http_call", map[string]any{"url": "https://example.com"}))
	assert.Error(t, reg.ValidateStepParameters("http_call", map[string]any{"method": "GET"}))
	assert.Error(t, reg.ValidateStepParameters("http_call", map[string]any{"url": "https://example.com", "method": "PATCH"}))

	assert.NoError(t, reg.ValidateStepParameters("log", map[string]any{"anything": "goes"}),
		"executors without a schema accept any parameters")

	assert.Error(t, reg.ValidateStepParameters("unknown", nil))
}

func TestHealthCheck(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, ok := reg.HealthCheck()
	assert.False(t, ok)

	reg.RegisterExecutor(newFactory("log", nil))

	_, ok = reg.HealthCheck()
	assert.True(t, ok)
}

func TestRegisteredExecutors(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterExecutor(newFactory("log", nil))
	reg.RegisterExecutor(newFactory("http_call", &models.JSONSchema{Type: "object"}))

	executors := reg.RegisteredExecutors()
	assert.Len(t, executors, 2)
}
