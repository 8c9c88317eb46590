package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

// Migrator defines an interface capable of applying schema migrations.
type Migrator interface {
	Up(ctx context.Context) error
}

const (
	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`
	selectVersions     = `SELECT version FROM schema_migrations`
	insertVersion      = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// SQLMigrator executes .up.sql files against a database connection. Applied files are recorded
// in schema_migrations and skipped on later runs.
type SQLMigrator struct {
	Logger *slog.Logger
	DB     *sql.DB
	FS     fs.FS
	Path   string
}

// NewSQLMigrator builds a migrator that runs SQL statements from the provided filesystem.
func NewSQLMigrator(db *sql.DB, f fs.FS, dir string, logger *slog.Logger) *SQLMigrator {
	return &SQLMigrator{DB: db, FS: f, Path: dir, Logger: logger}
}

// Up executes all pending *.up.sql files in lexical order, each inside its own transaction.
func (m *SQLMigrator) Up(ctx context.Context) error {
	if m == nil {
		return errors.New("sql migrator is nil")
	}
	if m.DB == nil {
		return errors.New("sql migrator requires a database handle")
	}
	if m.FS == nil {
		return errors.New("sql migrator requires a filesystem")
	}
	if m.Path == "" {
		return errors.New("sql migrator requires a path")
	}

	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := fs.ReadDir(m.FS, m.Path)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := m.DB.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	applied := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version := strings.TrimSuffix(name, ".up.sql")
		if done[version] {
			continue
		}

		contents, err := fs.ReadFile(m.FS, path.Join(m.Path, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		statements := splitSQLStatements(string(contents))
		if len(statements) == 0 {
			logger.Info("skipping empty migration", "file", name)
			continue
		}

		if err := m.apply(ctx, version, statements); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		applied++
		logger.Info("migration applied", "file", name)
	}

	if applied == 0 {
		logger.Info("no migrations to run")
	}
	return nil
}

func (m *SQLMigrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.DB.QueryContext(ctx, selectVersions)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (m *SQLMigrator) apply(ctx context.Context, version string, statements []string) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec [%d]: %w", i+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, insertVersion, version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

func splitSQLStatements(sqlText string) []string {
	raw := strings.Split(sqlText, ";")
	out := make([]string, 0, len(raw))
	for _, stmt := range raw {
		trimmed := strings.TrimSpace(stmt)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
