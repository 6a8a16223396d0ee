package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-arena/pkg/testsupport"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := testsupport.NewSQLiteMemoryDB()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if _, err := db.NewCreateTable().Model((*Setting)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestBunRepositorySetCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRepository(newTestDB(t))

	created, err := repo.Set(ctx, KeyVersion, "3.7.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Value != "3.7.0" {
		t.Fatalf("unexpected value %q", created.Value)
	}

	updated, err := repo.Set(ctx, KeyVersion, "3.7.5")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatal("update must keep the original row")
	}
	if updated.Value != "3.7.5" {
		t.Fatalf("unexpected value %q", updated.Value)
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected a single row, got %d", len(records))
	}
}

func TestBunRepositoryGetMissingKey(t *testing.T) {
	repo := NewBunRepository(newTestDB(t))

	_, err := repo.Get(context.Background(), "absent")
	if !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("expected ErrSettingNotFound, got %v", err)
	}
}

func TestBunRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRepository(newTestDB(t))

	if _, err := repo.Set(ctx, KeyImportInProgress, "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Delete(ctx, KeyImportInProgress); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, KeyImportInProgress); !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("expected ErrSettingNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, KeyImportInProgress); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
}
