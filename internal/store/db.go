package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB and remembers which driver is in use so callers can
// rebind placeholders for Postgres.
type DB struct {
	Client *sql.DB
	Driver string
}

// Open connects to the attendance database. A postgres:// URL uses pgx;
// anything else is treated as a sqlite file path (the default deployment).
func Open(databaseURL string) (*DB, error) {
	var (
		db     *sql.DB
		driver string
		err    error
	)
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		driver = "pgx"
		db, err = sql.Open("pgx", databaseURL)
	} else {
		driver = "sqlite3"
		if dir := filepath.Dir(databaseURL); dir != "." && !strings.HasPrefix(databaseURL, ":memory:") {
			if mkerr := os.MkdirAll(dir, 0o755); mkerr != nil {
				return nil, fmt.Errorf("create db dir: %w", mkerr)
			}
		}
		db, err = sql.Open("sqlite3", databaseURL+"?_journal_mode=WAL&_busy_timeout=5000")
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{Client: db, Driver: driver}
	if err := d.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.Driver == "pgx" {
		serial = "BIGINT PRIMARY KEY GENERATED ALWAYS AS IDENTITY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS students (
			student_id  TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			email       TEXT NOT NULL DEFAULT '',
			course      TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id          ` + serial + `,
			student_id  TEXT NOT NULL REFERENCES students(student_id),
			name        TEXT NOT NULL,
			status      TEXT NOT NULL,
			timestamp   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id          ` + serial + `,
			student_id  TEXT NOT NULL REFERENCES students(student_id),
			message     TEXT NOT NULL,
			sent_at     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token       TEXT PRIMARY KEY,
			subject     TEXT NOT NULL,
			expires_at  TEXT NOT NULL,
			revoked     BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_time    ON attendance(timestamp)`,
	}
	for _, stmt := range schema {
		if _, err := d.Client.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Rebind rewrites ? placeholders to $1..$n when the Postgres driver is active.
func (d *DB) Rebind(query string) string {
	if d.Driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
