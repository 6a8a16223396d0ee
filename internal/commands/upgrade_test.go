package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-arena/internal/platform"
	"github.com/goliatone/go-arena/internal/settings"
)

type migratorStub struct {
	calls int
	err   error
}

func (m *migratorStub) Run(context.Context) error {
	m.calls++
	return m.err
}

func TestUpgradeCommandValidation(t *testing.T) {
	valid := UpgradePlatformCommand{
		From: platform.MustParseVersion("3.0.0"),
		To:   platform.MustParseVersion("3.7.5"),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}

	missingTarget := UpgradePlatformCommand{From: platform.MustParseVersion("3.0.0")}
	if err := missingTarget.Validate(); err == nil {
		t.Fatal("missing target version must be rejected")
	}

	downgrade := UpgradePlatformCommand{
		From: platform.MustParseVersion("3.7.5"),
		To:   platform.MustParseVersion("3.0.0"),
	}
	if err := downgrade.Validate(); err == nil {
		t.Fatal("downgrades must be rejected")
	}
}

func TestUpgradeHandlerRunsMigrationsAndRecordsVersion(t *testing.T) {
	migrator := &migratorStub{}
	store := settings.NewService(settings.NewMemoryRepository())
	handler := NewUpgradePlatformHandler(migrator, store, nil)

	msg := UpgradePlatformCommand{
		From: platform.MustParseVersion("3.0.0"),
		To:   platform.MustParseVersion("3.7.5"),
	}
	if err := handler.Execute(t.Context(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if migrator.calls != 1 {
		t.Fatalf("migrations must run once, ran %d times", migrator.calls)
	}
	if got, err := store.Get(t.Context(), settings.KeyVersion); err != nil || got != "3.7.5" {
		t.Fatalf("version must be recorded, got %q err %v", got, err)
	}
}

func TestUpgradeHandlerStopsOnMigrationFailure(t *testing.T) {
	migrator := &migratorStub{err: errors.New("schema locked")}
	store := settings.NewService(settings.NewMemoryRepository())
	handler := NewUpgradePlatformHandler(migrator, store, nil)

	msg := UpgradePlatformCommand{
		From: platform.MustParseVersion("3.0.0"),
		To:   platform.MustParseVersion("3.7.5"),
	}
	if err := handler.Execute(t.Context(), msg); err == nil {
		t.Fatal("migration failure must surface")
	}

	if _, err := store.Get(t.Context(), settings.KeyVersion); !errors.Is(err, settings.ErrSettingNotFound) {
		t.Fatalf("version must stay unset after a failed upgrade, got %v", err)
	}
}

func TestUpgradeHandlerRejectsInvalidMessage(t *testing.T) {
	migrator := &migratorStub{}
	handler := NewUpgradePlatformHandler(migrator, settings.NewService(settings.NewMemoryRepository()), nil)

	if err := handler.Execute(t.Context(), UpgradePlatformCommand{}); err == nil {
		t.Fatal("invalid message must be rejected before execution")
	}
	if migrator.calls != 0 {
		t.Fatal("invalid messages must not reach the migrator")
	}
}
