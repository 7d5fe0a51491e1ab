package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// Schema is applied by Bootstrap. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_counters (
    identity      TEXT PRIMARY KEY,
    day           TEXT NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    media_count   INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS memory_facts (
    seq           BIGSERIAL PRIMARY KEY,
    identity      TEXT NOT NULL,
    fact          TEXT NOT NULL,
    creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_memory_facts_identity ON memory_facts(identity, seq);
CREATE TABLE IF NOT EXISTS accounts (
    identity    TEXT PRIMARY KEY,
    plan        TEXT NOT NULL,
    update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap applies the schema on an open connection.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Usage() store.Usage       { return &usage{db: s.db} }
func (s *pgStore) Memories() store.Memories { return &memories{db: s.db} }
func (s *pgStore) Accounts() store.Accounts { return &accounts{db: s.db} }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Usage ---
type usage struct{ db *sql.DB }

func (u *usage) Get(ctx context.Context, id model.Identity) (*model.UsageCounter, error) {
	var c model.UsageCounter
	row := u.db.QueryRowContext(ctx, `
        SELECT day, message_count, media_count FROM usage_counters WHERE identity=$1
    `, string(id))
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
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (identity) DO UPDATE
        SET day=EXCLUDED.day, message_count=EXCLUDED.message_count, media_count=EXCLUDED.media_count
    `, string(id), c.Day, c.MessageCount, c.MediaCount)
	return err
}

// --- Memories ---
type memories struct{ db *sql.DB }

func (m *memories) Get(ctx context.Context, id model.Identity) (*model.MemoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT fact FROM memory_facts WHERE identity=$1 ORDER BY seq ASC
    `, string(id))
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
	_, err := m.db.ExecContext(ctx, `INSERT INTO memory_facts (identity, fact) VALUES ($1,$2)`, string(id), fact)
	return err
}

// --- Accounts ---
type accounts struct{ db *sql.DB }

func (a *accounts) Get(ctx context.Context, id model.Identity) (*model.Account, error) {
	out := model.Account{Identity: id}
	var updated time.Time
	row := a.db.QueryRowContext(ctx, `SELECT plan, update_time FROM accounts WHERE identity=$1`, string(id))
	if err := row.Scan(&out.Plan, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.UpdateTime = updated.UTC()
	return &out, nil
}

func (a *accounts) Upgrade(ctx context.Context, id model.Identity, plan string) error {
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO accounts (identity, plan, update_time) VALUES ($1,$2,now())
        ON CONFLICT (identity) DO UPDATE SET plan=EXCLUDED.plan, update_time=now()
    `, string(id), plan)
	return err
}
