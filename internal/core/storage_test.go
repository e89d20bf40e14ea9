package core

import (
	"path/filepath"
	"testing"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreSelectsDriver(t *testing.T) {
	t.Setenv("BAKEHOUSE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(nil)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	t.Setenv("BAKEHOUSE_STORAGE_DRIVER", "sqlite")
	t.Setenv("BAKEHOUSE_SQLITE_PATH", filepath.Join(t.TempDir(), "bakehouse.db"))
	store, err = OpenPersistentStore(nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	_ = s.Close()

	t.Setenv("BAKEHOUSE_STORAGE_DRIVER", "bogus")
	if _, err := OpenPersistentStore(nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
