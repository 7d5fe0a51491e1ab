// Package session holds per-session state that must never reach durable storage.
package session

import (
	"sync"

	"github.com/harshite737-crypto/haste/internal/model"
)

// Grants records which identities unlocked owner mode in this process.
// Grants vanish when the process exits.
type Grants struct {
	mu     sync.RWMutex
	active map[model.Identity]struct{}
}

// NewGrants returns an empty grant registry.
func NewGrants() *Grants {
	return &Grants{active: make(map[model.Identity]struct{})}
}

// Grant enables owner mode for id.
func (g *Grants) Grant(id model.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[id] = struct{}{}
}

// Revoke disables owner mode for id.
func (g *Grants) Revoke(id model.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, id)
}

// Active reports whether id holds an owner grant.
func (g *Grants) Active(id model.Identity) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.active[id]
	return ok
}
