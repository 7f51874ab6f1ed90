package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/izavyalov-dev/jarforge/internal/observability"
	"github.com/izavyalov-dev/jarforge/state/migrations"
)

// migrationLockKey is the advisory lock held while the build history schema
// is migrated. Concurrent jarforge runs against one database queue on it.
const migrationLockKey int64 = 0x6a6172666f726765 // "jarforge"

// ApplyMigrations brings the build history schema up to date and returns the
// ids of the migrations it applied.
func (s *Store) ApplyMigrations(ctx context.Context) ([]string, error) {
	return s.applyMigrations(ctx, migrations.All)
}

func (s *Store) applyMigrations(ctx context.Context, list []migrations.Migration) ([]string, error) {
	if err := checkMigrations(list); err != nil {
		return nil, err
	}
	logger := observability.NewLogger("state")

	var applied []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("lock schema: %w", err)
		}
		if err := ensureSchemaMigrationsTable(ctx, tx); err != nil {
			return err
		}
		done, err := loadAppliedMigrations(ctx, tx)
		if err != nil {
			return err
		}

		for _, m := range list {
			if _, ok := done[m.ID]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, m.Script); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
				return fmt.Errorf("record migration %s: %w", m.ID, err)
			}
			applied = append(applied, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range applied {
		logger.Info("migration applied", "event", "migration_applied", "migration", id)
	}
	if len(applied) == 0 {
		logger.Debug("schema up to date", "event", "migrations_current", "known", len(list))
	}
	return applied, nil
}

// checkMigrations rejects lists that could record one id for two scripts.
func checkMigrations(list []migrations.Migration) error {
	seen := make(map[string]struct{}, len(list))
	for i, m := range list {
		if m.ID == "" {
			return fmt.Errorf("migration %d: id required", i)
		}
		if m.Script == "" {
			return fmt.Errorf("migration %s: empty script", m.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("migration %s: %w", m.ID, errDuplicateMigration)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

var errDuplicateMigration = errors.New("duplicate migration id")

func ensureSchemaMigrationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    id TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func loadAppliedMigrations(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = struct{}{}
	}
	return done, rows.Err()
}
