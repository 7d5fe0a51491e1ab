// Package memory keeps the facts remembered about each identity and renders
// them into the context block attached to completion requests.
package memory

import (
	"context"
	"strings"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// ContextHeader opens a non-empty context block.
const ContextHeader = "Important user info:"

// Store is an append-only, identity-scoped fact list.
type Store struct {
	mem store.Memories
}

// New wraps a persistence backend.
func New(mem store.Memories) *Store {
	return &Store{mem: mem}
}

// Append records fact for id. Facts are never deduplicated or removed.
func (s *Store) Append(ctx context.Context, id model.Identity, fact string) error {
	return s.mem.Append(ctx, id, fact)
}

// RenderContext returns the context block for id, or "" when nothing is remembered.
func (s *Store) RenderContext(ctx context.Context, id model.Identity) (string, error) {
	rec, err := s.mem.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return Render(rec.Facts), nil
}

// Render formats facts as a header line followed by one bullet per fact.
func Render(facts []string) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(ContextHeader)
	for _, f := range facts {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}
