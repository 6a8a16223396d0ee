package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-arena/internal/cache"
)

func TestServiceGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	if _, err := svc.Get(ctx, KeyTheme); !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("expected ErrSettingNotFound, got %v", err)
	}

	if err := svc.Set(ctx, KeyTheme, "core-beta"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, err := svc.Get(ctx, KeyTheme)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "core-beta" {
		t.Fatalf("unexpected value %q", value)
	}

	if got := svc.GetDefault(ctx, "missing", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestServiceReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	shared := cache.NewMemory()
	svc := NewService(repo, WithCache(shared, time.Minute))

	if err := svc.Set(ctx, KeyTheme, "aurora"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Mutate the repository behind the service's back; the cached value must
	// win until it is invalidated.
	if _, err := repo.Set(ctx, KeyTheme, "stale"); err != nil {
		t.Fatalf("raw set: %v", err)
	}
	if value, _ := svc.Get(ctx, KeyTheme); value != "aurora" {
		t.Fatalf("expected cached value, got %q", value)
	}

	if err := shared.Delete(ctx, "config:"+KeyTheme); err != nil {
		t.Fatalf("cache delete: %v", err)
	}
	if value, _ := svc.Get(ctx, KeyTheme); value != "stale" {
		t.Fatalf("expected repository value after invalidation, got %q", value)
	}
}

func TestServiceSetRefreshesCachedValue(t *testing.T) {
	ctx := context.Background()
	shared := cache.NewMemory()
	svc := NewService(NewMemoryRepository(), WithCache(shared, time.Minute))

	if err := svc.Set(ctx, KeyTheme, "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Set(ctx, KeyTheme, "second"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if value, _ := svc.Get(ctx, KeyTheme); value != "second" {
		t.Fatalf("every reader must observe the new value, got %q", value)
	}
}

func TestImportInProgress(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	if svc.ImportInProgress(ctx) {
		t.Fatal("import flag should default to false")
	}
	if err := svc.SetImportInProgress(ctx, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !svc.ImportInProgress(ctx) {
		t.Fatal("import flag should be set")
	}
	if err := svc.SetImportInProgress(ctx, false); err != nil {
		t.Fatalf("clear flag: %v", err)
	}
	if svc.ImportInProgress(ctx) {
		t.Fatal("import flag should be cleared")
	}
}

func TestMemoryRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, key := range []string{"b", "a", "c"} {
		if _, err := repo.Set(ctx, key, key); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || records[0].Key != "a" || records[2].Key != "c" {
		t.Fatalf("unexpected ordering: %#v", records)
	}
}
