// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/verdantlabs/greenlight/pkg/executors/httpcall"
	logexecutor "github.com/verdantlabs/greenlight/pkg/executors/log"
	"github.com/verdantlabs/greenlight/pkg/registry"
)

// NewRegistry builds the executor registry with the native executors plus
// any .so plugins found under pluginsPath.
func NewRegistry(logger *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	reg.RegisterExecutor(logexecutor.NewFactory())
	reg.RegisterExecutor(httpcall.NewFactory())

	if pluginsPath != "" {
		plugins, err := reg.LoadExecutorPlugins(pluginsPath)
		if err != nil {
			return nil, err
		}

		for _, plugin := range plugins {
			reg.RegisterExecutor(plugin)
		}
	}

	return reg, nil
}
