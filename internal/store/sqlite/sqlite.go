package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// Open opens (or creates) a SQLite database at the given path with WAL journal mode
// and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single writer connection keeps appends and upserts serialised.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_counters (
            identity TEXT PRIMARY KEY,
            day TEXT NOT NULL,
            message_count INTEGER NOT NULL DEFAULT 0,
            media_count INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS memory_facts (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            identity TEXT NOT NULL,
            fact TEXT NOT NULL,
            creation_time INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_memory_facts_identity ON memory_facts(identity, seq);`,
		`CREATE TABLE IF NOT EXISTS accounts (
            identity TEXT PRIMARY KEY,
            plan TEXT NOT NULL,
            update_time INTEGER NOT NULL
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// NewWithDB constructs a SQLite store backed by an opened connection.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Usage() store.Usage       { return &usage{db: s.db} }
func (s *sqliteStore) Memories() store.Memories { return &memories{db: s.db} }
func (s *sqliteStore) Accounts() store.Accounts { return &accounts{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- Usage ---
type usage struct{ db *sql.DB }

func (u *usage) Get(ctx context.Context, id model.Identity) (*model.UsageCounter, error) {
	var c model.UsageCounter
	row := u.db.QueryRowContext(ctx, `SELECT day, message_count, media_count FROM usage_counters WHERE identity=?`, string(id))
	if err := row.Scan(&c.Day, &c.MessageCount, &c.MediaCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (u *usage) Put(ctx context.Context, id model.Identity, c *model.UsageCounter) error {
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO usage_counters (identity, day, message_count, media_count)
        VALUES (?,?,?,?)
        ON CONFLICT(identity) DO UPDATE SET day=excluded.day, message_count=excluded.message_count, media_count=excluded.media_count
    `, string(id), c.Day, c.MessageCount, c.MediaCount)
	return err
}

// --- Memories ---
type memories struct{ db *sql.DB }

func (m *memories) Get(ctx context.Context, id model.Identity) (*model.MemoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT fact FROM memory_facts WHERE identity=? ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	rec := &model.MemoryRecord{Identity: id, Facts: []string{}}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		rec.Facts = append(rec.Facts, f)
	}
	return rec, rows.Err()
}

func (m *memories) Append(ctx context.Context, id model.Identity, fact string) error {
	_, err := m.db.ExecContext(ctx, `INSERT INTO memory_facts (identity, fact, creation_time) VALUES (?,?,?)`,
		string(id), fact, time.Now().UTC().Unix())
	return err
}

// --- Accounts ---
type accounts struct{ db *sql.DB }

func (a *accounts) Get(ctx context.Context, id model.Identity) (*model.Account, error) {
	out := model.Account{Identity: id}
	var updated int64
	row := a.db.QueryRowContext(ctx, `SELECT plan, update_time FROM accounts WHERE identity=?`, string(id))
	if err := row.Scan(&out.Plan, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.UpdateTime = time.Unix(updated, 0).UTC()
	return &out, nil
}

func (a *accounts) Upgrade(ctx context.Context, id model.Identity, plan string) error {
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO accounts (identity, plan, update_time) VALUES (?,?,?)
        ON CONFLICT(identity) DO UPDATE SET plan=excluded.plan, update_time=excluded.update_time
    `, string(id), plan, time.Now().UTC().Unix())
	return err
}
