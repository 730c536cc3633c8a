// Package registry resolves tool names to registered executor factories.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"strings"

	"github.com/verdantlabs/greenlight/pkg/protocol"
)

type Registry struct {
	logger            *slog.Logger
	executorFactories map[string]protocol.ExecutorFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:            logger,
		executorFactories: make(map[string]protocol.ExecutorFactory),
	}
}

func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.executorFactories[factory.Name()] = factory
}

// CreateExecutor resolves a tool name to a registered executor by exact
// name. Unknown names fail; the engine scopes that failure to one step.
func (r *Registry) CreateExecutor(name string, config map[string]any) (protocol.Executor, error) {
	factory, ok := r.executorFactories[name]
	if !ok {
		return nil, fmt.Errorf("executor '%s' not registered", name)
	}

	return factory.Create(config)
}

// ExecutorNames returns all registered executor names.
func (r *Registry) ExecutorNames() []string {
	names := make([]string, 0, len(r.executorFactories))
	for name := range r.executorFactories {
		names = append(names, name)
	}

	return names
}

func (r *Registry) HealthCheck() (string, bool) {
	if len(r.executorFactories) == 0 {
		return "No executors registered", false
	}

	return fmt.Sprintf("%d executors registered", len(r.executorFactories)), true
}

// LoadExecutorPlugins loads executor factories from .so plugins under
// pluginsPath/executors.
func (r *Registry) LoadExecutorPlugins(pluginsPath string) ([]protocol.ExecutorFactory, error) {
	return loadPlugin[protocol.ExecutorFactory](r.logger, pluginsPath, "Executor")
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no %s symbol: %w", p, symbolName, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: %s symbol has wrong type", p, symbolName)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded executor plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
