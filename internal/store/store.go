// Package store persists device variable snapshots and run history in a
// SQL database. sqlite3, mysql and postgres are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"tinyc/internal/interp"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	driver    string
	serial    string
	numbered  bool
	returning bool
}

var dialects = map[string]dialect{
	"sqlite3":  {driver: "sqlite3", serial: "INTEGER PRIMARY KEY AUTOINCREMENT"},
	"mysql":    {driver: "mysql", serial: "BIGINT AUTO_INCREMENT PRIMARY KEY"},
	"postgres": {driver: "postgres", serial: "BIGSERIAL PRIMARY KEY", numbered: true, returning: true},
}

// rebind rewrites ? placeholders as $1, $2, ... for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS variables (
			device VARCHAR(64) NOT NULL,
			name CHAR(1) NOT NULL,
			value INTEGER NOT NULL,
			PRIMARY KEY (device, name))`,
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + d.serial + `,
			device VARCHAR(64) NOT NULL,
			script TEXT NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			message TEXT NOT NULL,
			feeds BIGINT NOT NULL,
			started_at BIGINT NOT NULL,
			elapsed_ms BIGINT NOT NULL)`,
	}
}

type Store struct {
	db      *sql.DB
	dialect dialect
}

// Run is one recorded script execution. Outcome is the completion signal,
// or the error kind when the run failed.
type Run struct {
	ID        int64
	Device    string
	Script    string
	Outcome   string
	Message   string
	Feeds     int64
	StartedAt time.Time
	Elapsed   time.Duration
}

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if d.driver == "sqlite3" {
		// every connection to an in-memory database is a new database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: create schema: %w", err)
		}
	}
	slog.Debug("store opened", slog.String("driver", driver))
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveVariables replaces the stored snapshot for device.
func (s *Store) SaveVariables(ctx context.Context, device string, vars interp.Variables) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM variables WHERE device = ?"), device); err != nil {
		return fmt.Errorf("store: clear variables: %w", err)
	}
	insert := s.dialect.rebind("INSERT INTO variables (device, name, value) VALUES (?, ?, ?)")
	for i, v := range vars {
		name := string(interp.SlotName(i))
		if _, err := tx.ExecContext(ctx, insert, device, name, v); err != nil {
			return fmt.Errorf("store: save variable %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	slog.Debug("variables saved", slog.String("device", device))
	return nil
}

// LoadVariables returns the snapshot for device. ok is false when none was
// saved.
func (s *Store) LoadVariables(ctx context.Context, device string) (vars interp.Variables, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind("SELECT name, value FROM variables WHERE device = ?"), device)
	if err != nil {
		return vars, false, fmt.Errorf("store: load variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			value int32
		)
		if err := rows.Scan(&name, &value); err != nil {
			return vars, false, fmt.Errorf("store: scan variable: %w", err)
		}
		if len(name) != 1 || !vars.Set(name[0], value) {
			slog.Warn("skipping stored variable", slog.String("device", device), slog.String("name", name))
			continue
		}
		ok = true
	}
	if err := rows.Err(); err != nil {
		return vars, false, fmt.Errorf("store: load variables: %w", err)
	}
	return vars, ok, nil
}

// RecordRun appends r to the run history and returns its id.
func (s *Store) RecordRun(ctx context.Context, r Run) (int64, error) {
	query := "INSERT INTO runs (device, script, outcome, message, feeds, started_at, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?, ?)"
	args := []any{r.Device, r.Script, r.Outcome, r.Message, r.Feeds, r.StartedAt.UnixMilli(), r.Elapsed.Milliseconds()}

	if s.dialect.returning {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("store: record run: %w", err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("store: record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: record run: %w", err)
	}
	return id, nil
}

// Runs returns up to limit runs for device, newest first.
func (s *Store) Runs(ctx context.Context, device string, limit int) ([]Run, error) {
	query := s.dialect.rebind(`SELECT id, device, script, outcome, message, feeds, started_at, elapsed_ms
		FROM runs WHERE device = ? ORDER BY id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, device, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                  Run
			startedMs, elapsed int64
		)
		if err := rows.Scan(&r.ID, &r.Device, &r.Script, &r.Outcome, &r.Message, &r.Feeds, &startedMs, &elapsed); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Elapsed = time.Duration(elapsed) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outcome names how a run ended: the signal, or the error kind.
func Outcome(sig interp.Signal, err error) string {
	if err == nil {
		return sig.String()
	}
	var ie *interp.Error
	if errors.As(err, &ie) {
		return ie.Kind.String()
	}
	return "error"
}
