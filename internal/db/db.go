// Package db owns the SQLite connection pool and its schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Options tunes the pool. Zero values fall back to defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens (or creates) a SQLite database and applies pending migrations.
// Migrations are versioned .sql files under internal/db/migrations:
//
//	0001_name.up.sql / 0001_name.down.sql
//
// Only new migrations are applied. Use RollbackLast to revert the last applied one.
// The returned pool is the only handle the process should hold; close it at shutdown.
func Open(path string, opts ...Options) (*sqlx.DB, error) {
	if path == "" {
		path = "app.db"
	}
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	// A private in-memory database exists per connection, and shared-cache mode
	// fails fast on table locks, so memory databases get exactly one connection.
	if isMemory(path) {
		o.MaxOpenConns, o.MaxIdleConns = 1, 1
	}
	d, err := sqlx.Open("sqlite3", withPragmas(path))
	if err != nil {
		return nil, err
	}
	applyPool(d, o)
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	if err := ApplyMigrations(context.Background(), d.DB); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// withPragmas appends per-connection settings understood by go-sqlite3.
// PRAGMA statements run through the pool would only reach one connection.
func withPragmas(path string) string {
	params := []string{"_busy_timeout=5000", "_foreign_keys=on", "_txlock=immediate"}
	if !isMemory(path) {
		params = append(params, "_journal_mode=WAL")
	}
	var add []string
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if !strings.Contains(path, key) {
			add = append(add, p)
		}
	}
	if len(add) == 0 {
		return path
	}
	if strings.HasPrefix(path, ":memory:") {
		path = "file::memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(add, "&")
}

func applyPool(d *sqlx.DB, o Options) {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 8
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = o.MaxOpenConns
	}
	d.SetMaxOpenConns(o.MaxOpenConns)
	d.SetMaxIdleConns(o.MaxIdleConns)
	if o.ConnMaxLifetime > 0 {
		d.SetConnMaxLifetime(o.ConnMaxLifetime)
	}
}

// Healthy pings the pool with a bounded deadline.
func Healthy(ctx context.Context, d *sqlx.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.PingContext(ctx)
}

// InTx runs fn inside a transaction, rolling back when fn returns an error.
func InTx(ctx context.Context, d *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version  int
	name     string
	upFile   string // path inside embedded FS
	downFile string // path inside embedded FS
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.(up|down)\.sql$`)

func loadMigrations() (map[int]migration, error) {
	entries := map[int]migration{}
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return entries, nil
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		var ver int
		if _, err := fmt.Sscanf(m[1], "%04d", &ver); err != nil {
			continue
		}
		item := entries[ver]
		item.version = ver
		item.name = m[2]
		p := "migrations/" + de.Name()
		if m[3] == "up" {
			item.upFile = p
		} else {
			item.downFile = p
		}
		entries[ver] = item
	}
	return entries, nil
}

func ensureMigrationsTable(ctx context.Context, d *sql.DB) error {
	_, err := d.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`)
	return err
}

// AppliedVersions returns the migration versions recorded in schema_migrations.
func AppliedVersions(ctx context.Context, d *sql.DB) (map[int]bool, error) {
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return nil, err
	}
	rows, err := d.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	got := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		got[v] = true
	}
	return got, rows.Err()
}

// runScript executes one migration script and records (or erases) its version.
// Scripts starting with "-- NO_TX" run outside a transaction.
func runScript(ctx context.Context, d *sql.DB, text, record string, version int) error {
	if strings.HasPrefix(strings.TrimSpace(text), "-- NO_TX") {
		if _, err := d.ExecContext(ctx, text); err != nil {
			return err
		}
		_, err := d.ExecContext(ctx, record, version)
		return err
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, text); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ApplyMigrations applies every embedded up script not yet recorded, in version order.
func ApplyMigrations(ctx context.Context, d *sql.DB) error {
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		return nil
	}
	applied, err := AppliedVersions(ctx, d)
	if err != nil {
		return err
	}
	versions := make([]int, 0, len(migs))
	for v := range migs {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	for _, v := range versions {
		if applied[v] {
			continue
		}
		m := migs[v]
		if strings.TrimSpace(m.upFile) == "" {
			return fmt.Errorf("missing up migration for version %04d", v)
		}
		text, err := migrationsFS.ReadFile(m.upFile)
		if err != nil {
			return err
		}
		if err := runScript(ctx, d, string(text), `INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("migration %04d (%s) failed: %w", v, m.name, err)
		}
	}
	return nil
}

// RollbackLast rolls back the most recently applied migration, if its down script exists.
func RollbackLast(ctx context.Context, d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	if err := ensureMigrationsTable(ctx, d); err != nil {
		return err
	}
	var version int
	err := d.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		return err
	}
	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	m, ok := migs[version]
	if !ok || m.downFile == "" {
		return fmt.Errorf("no down migration found for version %d", version)
	}
	text, err := migrationsFS.ReadFile(m.downFile)
	if err != nil {
		return err
	}
	return runScript(ctx, d, string(text), `DELETE FROM schema_migrations WHERE version = ?`, version)
}
