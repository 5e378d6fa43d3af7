package main

import (
	"path/filepath"
	"testing"

	"github.com/ashureev/docgate/internal/config"
	"github.com/ashureev/docgate/internal/store"
)

func TestOpenRepository(t *testing.T) {
	repo, err := openRepository(&config.Config{DBPath: config.MemoryDBPath})
	if err != nil {
		t.Fatalf("openRepository(memory): %v", err)
	}
	if _, ok := repo.(*store.MemoryStore); !ok {
		t.Errorf("Expected *store.MemoryStore for %s, got %T", config.MemoryDBPath, repo)
	}

	repo, err = openRepository(&config.Config{DBPath: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatalf("openRepository(sqlite): %v", err)
	}
	defer repo.Close()
	if _, ok := repo.(*store.SQLiteStore); !ok {
		t.Errorf("Expected *store.SQLiteStore, got %T", repo)
	}
}
