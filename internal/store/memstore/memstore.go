// Package memstore is the in-process store.Store used for local runs and tests.
// Data lives for the lifetime of the process.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// New returns an empty in-process store.
func New() store.Store {
	return &memStore{
		usage:    make(map[model.Identity]model.UsageCounter),
		facts:    make(map[model.Identity][]string),
		accounts: make(map[model.Identity]model.Account),
	}
}

type memStore struct {
	mu       sync.RWMutex
	usage    map[model.Identity]model.UsageCounter
	facts    map[model.Identity][]string
	accounts map[model.Identity]model.Account
}

func (s *memStore) Usage() store.Usage       { return usage{s} }
func (s *memStore) Memories() store.Memories { return memories{s} }
func (s *memStore) Accounts() store.Accounts { return accounts{s} }

// HealthPing implements health.HealthPinger; the map store is always reachable.
func (s *memStore) HealthPing(context.Context) error { return nil }

// --- Usage ---
type usage struct{ s *memStore }

func (u usage) Get(_ context.Context, id model.Identity) (*model.UsageCounter, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	c, ok := u.s.usage[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &c, nil
}

func (u usage) Put(_ context.Context, id model.Identity, c *model.UsageCounter) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.usage[id] = *c
	return nil
}

// --- Memories ---
type memories struct{ s *memStore }

func (m memories) Get(_ context.Context, id model.Identity) (*model.MemoryRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	src := m.s.facts[id]
	out := make([]string, len(src))
	copy(out, src)
	return &model.MemoryRecord{Identity: id, Facts: out}, nil
}

func (m memories) Append(_ context.Context, id model.Identity, fact string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.facts[id] = append(m.s.facts[id], fact)
	return nil
}

// --- Accounts ---
type accounts struct{ s *memStore }

func (a accounts) Get(_ context.Context, id model.Identity) (*model.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	acct, ok := a.s.accounts[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &acct, nil
}

func (a accounts) Upgrade(_ context.Context, id model.Identity, plan string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.accounts[id] = model.Account{Identity: id, Plan: plan, UpdateTime: time.Now().UTC()}
	return nil
}
