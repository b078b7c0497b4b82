package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration for the store's dialect. Applied
// versions are tracked by goose, so repeated calls are no-ops.
func (s *SQLStore) Migrate(ctx context.Context) error {
	dir, err := fs.Sub(migrationsFS, "migrations/"+s.dialect.name)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", s.dialect.name, err)
	}

	provider, err := goose.NewProvider(s.dialect.goose, s.db, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
