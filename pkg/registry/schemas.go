package registry

import (
	"fmt"
	"strings"

	"github.com/verdantlabs/greenlight/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateStepParameters checks a step's parameters against the registered
// executor's JSON Schema. Executors without a schema accept any parameters.
func (r *Registry) ValidateStepParameters(executorName string, parameters map[string]any) error {
	factory, ok := r.executorFactories[executorName]
	if !ok {
		return fmt.Errorf("executor '%s' not registered", executorName)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if parameters == nil {
		parameters = make(map[string]any)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate parameters for executor '%s': %w", executorName, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid parameters for executor '%s': %s", executorName, strings.Join(details, "; "))
	}

	return nil
}

// RegisteredExecutors returns metadata for every registered executor.
func (r *Registry) RegisteredExecutors() []*models.RegisteredExecutor {
	executors := make([]*models.RegisteredExecutor, 0, len(r.executorFactories))
	for name, factory := range r.executorFactories {
		executors = append(executors, &models.RegisteredExecutor{
			Name:   name,
			Schema: factory.Schema(),
		})
	}

	return executors
}
