package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	embeddedmigrations "github.com/solatis/ticketkeeper/migrations"
)

// MigrationStatus describes one schema file and whether it has been applied.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// Migrator applies the embedded event store schema for one database.
// Applied files are recorded with their SHA-256 in the migrations ledger;
// an applied file whose checksum changed is refused.
type Migrator struct {
	db      *sqlx.DB
	fsys    fs.FS
	dir     string
	dialect string
	log     logrus.FieldLogger
}

type schemaFile struct {
	id       string
	checksum string
	body     string
}

type ledgerRow struct {
	checksum    string
	appliedAt   *time.Time
	executionMs int64
}

// NewMigrator selects the schema files matching the database driver.
func NewMigrator(db *sqlx.DB, log logrus.FieldLogger) (*Migrator, error) {
	m := &Migrator{db: db, log: log}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}

	switch db.DriverName() {
	case "sqlite3":
		m.fsys, m.dir, m.dialect = embeddedmigrations.SqliteMigrations, "sqlite", "sqlite"
	case "postgres":
		m.fsys, m.dir, m.dialect = embeddedmigrations.PostgresMigrations, "postgres", "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	return m, nil
}

// MigrateUp applies every pending schema file to db.
func MigrateUp(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger) error {
	m, err := NewMigrator(db, log)
	if err != nil {
		return err
	}
	_, err = m.Up(ctx)
	return err
}

// MigrateStatus lists every schema file with its ledger entry, if any.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := NewMigrator(db, nil)
	if err != nil {
		return nil, err
	}
	return m.Status(ctx)
}

// Up applies pending files in name order, one transaction per file, and
// returns the ids it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	files, ledger, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := verifyLedger(files, ledger); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var applied []string
	for _, f := range files {
		if _, done := ledger[f.id]; done {
			continue
		}
		if err := m.apply(ctx, f); err != nil {
			return applied, err
		}
		applied = append(applied, f.id)
	}

	if len(applied) > 0 {
		m.log.WithFields(logrus.Fields{
			"dialect":    m.dialect,
			"migrations": applied,
		}).Info("event store schema migrated")
	}
	return applied, nil
}

// Status reports applied and pending files.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	files, ledger, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		s := MigrationStatus{ID: f.id, Checksum: f.checksum}
		if row, ok := ledger[f.id]; ok {
			s.Applied = true
			s.Checksum = row.checksum
			s.AppliedAt = row.appliedAt
			s.ExecutionMs = row.executionMs
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// load reads the embedded files and the ledger, creating the ledger table
// on first use.
func (m *Migrator) load(ctx context.Context) ([]schemaFile, map[string]ledgerRow, error) {
	files, err := readSchemaFiles(m.fsys, m.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, ledgerDDL(m.dialect)); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := m.db.QueryxContext(ctx, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	ledger := make(map[string]ledgerRow)
	for rows.Next() {
		var (
			id        string
			row       ledgerRow
			appliedAt interface{}
		)
		if err := rows.Scan(&id, &row.checksum, &appliedAt, &row.executionMs); err != nil {
			return nil, nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		row.appliedAt = parseAppliedAt(appliedAt)
		ledger[id] = row
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return files, ledger, nil
}

func (m *Migrator) apply(ctx context.Context, f schemaFile) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", f.id, err)
	}
	defer tx.Rollback()

	// lib/pq rejects several statements in one Exec.
	for _, stmt := range splitStatements(f.body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", f.id, err)
		}
	}

	now := time.Now().UTC()
	var appliedAt interface{} = now
	if m.dialect == "sqlite" {
		appliedAt = now.Format(time.RFC3339)
	}
	insert := tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, f.id, f.checksum, appliedAt, time.Since(start).Milliseconds()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", f.id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", f.id, err)
	}
	return nil
}

// verifyLedger fails when an applied file is gone or was edited after it ran.
func verifyLedger(files []schemaFile, ledger map[string]ledgerRow) error {
	known := make(map[string]string, len(files))
	for _, f := range files {
		known[f.id] = f.checksum
	}
	for id, row := range ledger {
		want, ok := known[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if row.checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, row.checksum)
		}
	}
	return nil
}

func readSchemaFiles(fsys fs.FS, dir string) ([]schemaFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []schemaFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(body)
		files = append(files, schemaFile{
			id:       e.Name(),
			checksum: hex.EncodeToString(sum[:]),
			body:     string(body),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].id < files[j].id })
	return files, nil
}

// ledgerDDL must stay in sync with the migrations table in 001_initial_schema.sql.
func ledgerDDL(dialect string) string {
	if dialect == "sqlite" {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

// parseAppliedAt normalises applied_at: sqlite stores RFC3339 text,
// postgres returns a timestamp.
func parseAppliedAt(v interface{}) *time.Time {
	var text string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil
	}
	return &parsed
}

// splitStatements drops full-line comments and splits on semicolons.
// Schema files must not put semicolons inside string literals.
func splitStatements(sqlText string) []string {
	var kept []string
	for _, line := range strings.Split(sqlText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
