package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Stable identifiers of the shipped migrations. They double as the hint
// returned to operators when a feature needs a migration that is missing.
const (
	MigrationSupportTickets   = "20260203000000_support_tickets"
	MigrationMultitenantRBAC  = "20260203001000_multitenant_rbac"
	MigrationTicketAssignment = "20260203002000_support_ticket_assignment"
	MigrationTicketSLATags    = "20260203003000_support_ticket_sla_tags"
	MigrationAuditLogs        = "20260203004000_audit_logs"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT now()
	)`

// RunMigrations applies every *.sql file in migrationsPath that is not yet
// recorded in schema_migrations, in lexical order. The recorded version is
// the file name without its extension, which is also the identifier that
// SchemaNotReady errors report.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationsPath string, log zerolog.Logger) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.sql"))
	if err != nil {
		return fmt.Errorf("glob migration files: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		version := MigrationID(f)

		var exists bool
		err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)", version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sql, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("execute migration %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}

		log.Info().Str("version", version).Msg("applied migration")
	}

	return nil
}

// MigrationID turns a migration file path into its stable identifier.
func MigrationID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// AppliedMigrations reads the set of recorded migration versions. ok is
// false when the marker table itself does not exist, which is the case for
// databases migrated by hand before the runner was introduced.
func AppliedMigrations(ctx context.Context, q Querier) (applied map[string]bool, ok bool, err error) {
	rows, err := q.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		if IsMissingRelation(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied = make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, false, fmt.Errorf("scan schema_migrations: %w", err)
		}
		// Older runners recorded the file name with its extension.
		applied[strings.TrimSuffix(v, ".sql")] = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, true, nil
}
