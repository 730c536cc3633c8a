package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/persistence/file"
	"github.com/verdantlabs/greenlight/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme: postgres URLs get PostgreSQL, anything else the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch persistenceProvider(databaseURL) {
	case "postgres":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func persistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	if scheme == "postgres" || scheme == "postgresql" {
		return "postgres"
	}

	return "file"
}
