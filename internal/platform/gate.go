package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// ErrImportWaitTimeout indicates that a bulk import held the startup lock
// longer than the configured bound.
var ErrImportWaitTimeout = errors.New("platform: timed out waiting for import to finish")

// ImportStatus reports whether another process holds the bulk-import lock.
type ImportStatus interface {
	ImportInProgress(ctx context.Context) bool
}

// ImportGateConfig bounds the startup wait for a concurrent bulk import.
type ImportGateConfig struct {
	// PollInterval is how often the lock is rechecked.
	PollInterval time.Duration
	// Timeout bounds the total wait. Zero waits forever.
	Timeout time.Duration
}

// WaitForImport blocks startup until no bulk import is underway. The lock is
// process-external, held in shared storage, so polling is the only
// coordination available.
func WaitForImport(ctx context.Context, status ImportStatus, cfg ImportGateConfig, logger interfaces.Logger) error {
	if logger == nil {
		logger = logging.NoOp()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}

	var deadline <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if !status.ImportInProgress(ctx) {
			return nil
		}
		logger.Info("import in progress, delaying startup", "retry_in", poll.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrImportWaitTimeout, cfg.Timeout)
		case <-ticker.C:
		}
	}
}

// UpgradeFunc moves persisted platform state from one version to another.
type UpgradeFunc func(ctx context.Context, from, to Version) error

// EnsureVersion reconciles the stored platform version with the built one.
// A fresh installation records the built version. A stored version that
// orders before the built one triggers the upgrade and is then overwritten.
// A stored version newer than the build is left alone; running old code
// against new state is an operator decision, not something to fix silently.
func EnsureVersion(ctx context.Context, store interfaces.SettingsStore, built Version, upgrade UpgradeFunc, logger interfaces.Logger) error {
	if logger == nil {
		logger = logging.NoOp()
	}

	stored, err := store.Get(ctx, settings.KeyVersion)
	if err != nil {
		if !errors.Is(err, settings.ErrSettingNotFound) {
			return fmt.Errorf("platform: read stored version: %w", err)
		}
		if err := store.Set(ctx, settings.KeyVersion, built.String()); err != nil {
			return fmt.Errorf("platform: record version: %w", err)
		}
		logger.Info("platform version recorded", "version", built.String())
		return nil
	}

	current, err := ParseVersion(stored)
	if err != nil {
		return fmt.Errorf("platform: stored version %q: %w", stored, err)
	}

	switch {
	case current.Less(built):
		logger.Info("platform upgrade required", "from", current.String(), "to", built.String())
		if upgrade != nil {
			if err := upgrade(ctx, current, built); err != nil {
				return fmt.Errorf("platform: upgrade %s to %s: %w", current, built, err)
			}
		}
		if err := store.Set(ctx, settings.KeyVersion, built.String()); err != nil {
			return fmt.Errorf("platform: record version: %w", err)
		}
	case built.Less(current):
		logger.Warn("stored platform version is newer than this build", "stored", current.String(), "built", built.String())
	}
	return nil
}
