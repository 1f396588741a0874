package backend

import (
	"context"
	"path/filepath"
	"testing"

	"budgetwise/internal/config"
	"budgetwise/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil || cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Fatalf("unexpected %+v %v", cfg, err)
	}
}

func TestFactoryCreate(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "b.db")},
	} {
		res, err := f.Create(ctx, cfg)
		if err != nil {
			t.Fatalf("%s: %v", cfg.Type, err)
		}
		key := storage.Key{UserID: "u", Collection: storage.CollectionSavingsGoal}
		if err := res.Store.Save(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("%s save: %v", cfg.Type, err)
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Fatalf("%s ping: %v", cfg.Type, err)
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("%s cleanup: %v", cfg.Type, err)
		}
	}

	if _, err := f.Create(ctx, Config{Type: SQLiteBackend}); err == nil {
		t.Fatalf("expected error for missing sqlite path")
	}
}
