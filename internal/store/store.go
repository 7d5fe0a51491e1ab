package store

import (
	"context"

	"github.com/harshite737-crypto/haste/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (memstore, sqlite, postgres, redis).
type Store interface {
	Usage() Usage
	Memories() Memories
	Accounts() Accounts
}

// Usage persists per-identity daily counters. Get returns model.ErrNotFound
// when the identity has no counter yet. Callers serialise read-modify-write
// per identity; implementations only need atomic single operations.
type Usage interface {
	Get(ctx context.Context, id model.Identity) (*model.UsageCounter, error)
	Put(ctx context.Context, id model.Identity, c *model.UsageCounter) error
}

// Memories persists remembered facts. Get returns an empty record (not an
// error) for identities without facts. Facts are returned in insertion order.
type Memories interface {
	Get(ctx context.Context, id model.Identity) (*model.MemoryRecord, error)
	Append(ctx context.Context, id model.Identity, fact string) error
}

// Accounts maps identities to plans. Get returns model.ErrNotFound for
// identities that never upgraded. Upgrade creates or replaces the binding.
type Accounts interface {
	Get(ctx context.Context, id model.Identity) (*model.Account, error)
	Upgrade(ctx context.Context, id model.Identity, plan string) error
}
