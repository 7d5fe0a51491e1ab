package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/store"
	"github.com/harshite737-crypto/haste/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "haste.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "haste.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := NewWithDB(db).Memories().Append(ctx, "u1", "I live in Oslo"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	rec, err := NewWithDB(db).Memories().Get(ctx, model.Identity("u1"))
	if err != nil || len(rec.Facts) != 1 || rec.Facts[0] != "I live in Oslo" {
		t.Fatalf("facts after reopen: got=%v err=%v", rec, err)
	}
}
