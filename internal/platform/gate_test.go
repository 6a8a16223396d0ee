package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-arena/internal/settings"
)

type importFlag struct {
	remaining atomic.Int32
}

func (f *importFlag) ImportInProgress(context.Context) bool {
	return f.remaining.Add(-1) >= 0
}

func TestWaitForImportClearsImmediately(t *testing.T) {
	err := WaitForImport(context.Background(), &importFlag{}, ImportGateConfig{
		PollInterval: time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitForImportPollsUntilClear(t *testing.T) {
	flag := &importFlag{}
	flag.remaining.Store(3)

	start := time.Now()
	err := WaitForImport(context.Background(), flag, ImportGateConfig{
		PollInterval: 5 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected at least three polls, returned after %s", elapsed)
	}
}

func TestWaitForImportTimesOut(t *testing.T) {
	flag := &importFlag{}
	flag.remaining.Store(1 << 30)

	err := WaitForImport(context.Background(), flag, ImportGateConfig{
		PollInterval: time.Millisecond,
		Timeout:      20 * time.Millisecond,
	}, nil)
	if !errors.Is(err, ErrImportWaitTimeout) {
		t.Fatalf("expected ErrImportWaitTimeout, got %v", err)
	}
}

func TestWaitForImportHonorsContext(t *testing.T) {
	flag := &importFlag{}
	flag.remaining.Store(1 << 30)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WaitForImport(ctx, flag, ImportGateConfig{PollInterval: time.Millisecond}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnsureVersionFreshInstall(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())

	if err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), nil, nil); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got, _ := store.Get(ctx, settings.KeyVersion); got != "3.7.5" {
		t.Fatalf("fresh install must record the built version, got %q", got)
	}
}

func TestEnsureVersionRunsUpgrade(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())
	if err := store.Set(ctx, settings.KeyVersion, "3.7.0"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var from, to string
	upgrade := func(_ context.Context, f, t Version) error {
		from, to = f.String(), t.String()
		return nil
	}

	if err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), upgrade, nil); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if from != "3.7.0" || to != "3.7.5" {
		t.Fatalf("upgrade must run with stored and built versions, got %q -> %q", from, to)
	}
	if got, _ := store.Get(ctx, settings.KeyVersion); got != "3.7.5" {
		t.Fatalf("version must be recorded after upgrade, got %q", got)
	}
}

func TestEnsureVersionUpgradeFailureKeepsStoredVersion(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())
	if err := store.Set(ctx, settings.KeyVersion, "3.7.0"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), func(context.Context, Version, Version) error {
		return boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected upgrade error, got %v", err)
	}
	if got, _ := store.Get(ctx, settings.KeyVersion); got != "3.7.0" {
		t.Fatalf("a failed upgrade must not advance the stored version, got %q", got)
	}
}

func TestEnsureVersionEqualIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())
	if err := store.Set(ctx, settings.KeyVersion, "3.7.5"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), func(context.Context, Version, Version) error {
		t.Fatal("upgrade must not run for equal versions")
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
}

func TestEnsureVersionNewerStoredIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())
	if err := store.Set(ctx, settings.KeyVersion, "4.0.0"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), nil, nil); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got, _ := store.Get(ctx, settings.KeyVersion); got != "4.0.0" {
		t.Fatalf("a newer stored version must be left alone, got %q", got)
	}
}

func TestEnsureVersionRejectsCorruptStoredVersion(t *testing.T) {
	ctx := context.Background()
	store := settings.NewService(settings.NewMemoryRepository())
	if err := store.Set(ctx, settings.KeyVersion, "not-a-version"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := EnsureVersion(ctx, store, MustParseVersion("3.7.5"), nil, nil); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
}
