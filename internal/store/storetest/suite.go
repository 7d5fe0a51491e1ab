package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers
	id := model.Identity("u-" + uuid.New().String())
	other := model.Identity("u-" + uuid.New().String())

	// Usage
	if _, err := s.Usage().Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Usage.Get on fresh identity: want ErrNotFound, got %v", err)
	}
	c := &model.UsageCounter{Day: "2024-01-01", MessageCount: 3, MediaCount: 1}
	if err := s.Usage().Put(ctx, id, c); err != nil {
		t.Fatalf("Usage.Put: %v", err)
	}
	got, err := s.Usage().Get(ctx, id)
	if err != nil || got == nil || *got != *c {
		t.Fatalf("Usage.Get: got=%v err=%v", got, err)
	}
	c.MessageCount = 4
	c.Day = "2024-01-02"
	if err := s.Usage().Put(ctx, id, c); err != nil {
		t.Fatalf("Usage.Put overwrite: %v", err)
	}
	if got, err := s.Usage().Get(ctx, id); err != nil || got.MessageCount != 4 || got.Day != "2024-01-02" {
		t.Fatalf("Usage.Get after overwrite: got=%v err=%v", got, err)
	}

	// Memories
	rec, err := s.Memories().Get(ctx, id)
	if err != nil || rec == nil || len(rec.Facts) != 0 {
		t.Fatalf("Memories.Get on fresh identity: got=%v err=%v", rec, err)
	}
	facts := []string{"My name is Alex", "I like tea", "I like tea"}
	for _, f := range facts {
		if err := s.Memories().Append(ctx, id, f); err != nil {
			t.Fatalf("Memories.Append: %v", err)
		}
	}
	rec, err = s.Memories().Get(ctx, id)
	if err != nil {
		t.Fatalf("Memories.Get: %v", err)
	}
	if len(rec.Facts) != len(facts) {
		t.Fatalf("Memories.Get: want %d facts (no dedup), got %v", len(facts), rec.Facts)
	}
	for i := range facts {
		if rec.Facts[i] != facts[i] {
			t.Fatalf("Memories.Get: order mismatch at %d: %v", i, rec.Facts)
		}
	}
	if rec, err := s.Memories().Get(ctx, other); err != nil || len(rec.Facts) != 0 {
		t.Fatalf("Memories leaked across identities: got=%v err=%v", rec, err)
	}

	// Concurrent appends must not lose facts
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Memories().Append(ctx, other, fmt.Sprintf("fact-%d", i))
		}(i)
	}
	wg.Wait()
	if rec, err := s.Memories().Get(ctx, other); err != nil || len(rec.Facts) != 10 {
		t.Fatalf("concurrent Append: got=%v err=%v", rec, err)
	}

	// Accounts
	if _, err := s.Accounts().Get(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Accounts.Get on fresh identity: want ErrNotFound, got %v", err)
	}
	if err := s.Accounts().Upgrade(ctx, id, model.PlanTier2); err != nil {
		t.Fatalf("Accounts.Upgrade: %v", err)
	}
	if acct, err := s.Accounts().Get(ctx, id); err != nil || acct.Plan != model.PlanTier2 || acct.Identity != id {
		t.Fatalf("Accounts.Get: got=%v err=%v", acct, err)
	}
	if err := s.Accounts().Upgrade(ctx, id, model.PlanUnlimited); err != nil {
		t.Fatalf("Accounts.Upgrade again: %v", err)
	}
	if acct, err := s.Accounts().Get(ctx, id); err != nil || acct.Plan != model.PlanUnlimited {
		t.Fatalf("Accounts.Get after second upgrade: got=%v err=%v", acct, err)
	}
}
