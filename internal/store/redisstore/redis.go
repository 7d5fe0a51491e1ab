// Package redisstore backs store.Store with a Redis instance, for deployments that
// want counters and facts to outlive a process without running a database.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// usageTTL keeps yesterday's counter around long enough for a day rollover read.
const usageTTL = 48 * time.Hour

// Config holds configuration for the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open creates a client and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewWithClient constructs a Redis store. Keys are namespaced under prefix
// (default "haste").
func NewWithClient(rdb *redis.Client, prefix string) store.Store {
	if prefix == "" {
		prefix = "haste"
	}
	return &redisStore{rdb: rdb, prefix: prefix}
}

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

func (s *redisStore) Usage() store.Usage       { return &usage{s} }
func (s *redisStore) Memories() store.Memories { return &memories{s} }
func (s *redisStore) Accounts() store.Accounts { return &accounts{s} }

// HealthPing implements health.HealthPinger.
func (s *redisStore) HealthPing(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *redisStore) key(kind string, id model.Identity) string {
	return s.prefix + ":" + kind + ":" + string(id)
}

// --- Usage ---
type usage struct{ s *redisStore }

func (u *usage) Get(ctx context.Context, id model.Identity) (*model.UsageCounter, error) {
	raw, err := u.s.rdb.Get(ctx, u.s.key("usage", id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var c model.UsageCounter
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode usage counter: %w", err)
	}
	return &c, nil
}

func (u *usage) Put(ctx context.Context, id model.Identity, c *model.UsageCounter) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return u.s.rdb.Set(ctx, u.s.key("usage", id), raw, usageTTL).Err()
}

// --- Memories ---
type memories struct{ s *redisStore }

func (m *memories) Get(ctx context.Context, id model.Identity) (*model.MemoryRecord, error) {
	facts, err := m.s.rdb.LRange(ctx, m.s.key("facts", id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []string{}
	}
	return &model.MemoryRecord{Identity: id, Facts: facts}, nil
}

func (m *memories) Append(ctx context.Context, id model.Identity, fact string) error {
	return m.s.rdb.RPush(ctx, m.s.key("facts", id), fact).Err()
}

// --- Accounts ---
type accounts struct{ s *redisStore }

func (a *accounts) Get(ctx context.Context, id model.Identity) (*model.Account, error) {
	vals, err := a.s.rdb.HGetAll(ctx, a.s.key("account", id)).Result()
	if err != nil {
		return nil, err
	}
	plan, ok := vals["plan"]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := &model.Account{Identity: id, Plan: plan}
	if ts, err := time.Parse(time.RFC3339, vals["update_time"]); err == nil {
		out.UpdateTime = ts
	}
	return out, nil
}

func (a *accounts) Upgrade(ctx context.Context, id model.Identity, plan string) error {
	return a.s.rdb.HSet(ctx, a.s.key("account", id),
		"plan", plan,
		"update_time", time.Now().UTC().Format(time.RFC3339),
	).Err()
}
