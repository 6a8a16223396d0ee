package commands

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-arena/internal/platform"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

const upgradePlatformMessageType = "arena.platform.upgrade"

// UpgradePlatformCommand asks the platform to move persisted state from one
// version to another. The version gate dispatches it during startup when the
// stored version orders before the built one.
type UpgradePlatformCommand struct {
	From platform.Version `json:"from"`
	To   platform.Version `json:"to"`
}

// Type implements command.Message.
func (UpgradePlatformCommand) Type() string { return upgradePlatformMessageType }

// Validate ensures the upgrade request is coherent before any handler runs.
func (m UpgradePlatformCommand) Validate() error {
	errs := validation.Errors{}
	if m.To == (platform.Version{}) {
		errs["to"] = validation.NewError("arena.platform.upgrade.to_required", "target version is required")
	}
	if !m.From.Less(m.To) {
		errs["from"] = validation.NewError("arena.platform.upgrade.order_invalid", "source version must order before target version")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// MigrationRunner is the slice of the database layer the upgrade needs.
type MigrationRunner interface {
	Run(ctx context.Context) error
}

// UpgradePlatformHandler re-runs schema migrations and persists the new
// version. Deployments with custom upgrade steps substitute their own
// Commander for the same message.
type UpgradePlatformHandler struct {
	inner *Handler[UpgradePlatformCommand]
}

var _ command.Commander[UpgradePlatformCommand] = (*UpgradePlatformHandler)(nil)

// NewUpgradePlatformHandler constructs the default upgrade handler.
func NewUpgradePlatformHandler(migrator MigrationRunner, store interfaces.SettingsStore, logger interfaces.Logger, opts ...HandlerOption[UpgradePlatformCommand]) *UpgradePlatformHandler {
	exec := func(ctx context.Context, msg UpgradePlatformCommand) error {
		if err := migrator.Run(ctx); err != nil {
			return err
		}
		return store.Set(ctx, settings.KeyVersion, msg.To.String())
	}

	handlerOpts := []HandlerOption[UpgradePlatformCommand]{
		WithLogger[UpgradePlatformCommand](logger),
		WithOperation[UpgradePlatformCommand]("platform.upgrade"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &UpgradePlatformHandler{
		inner: NewHandler(exec, handlerOpts...),
	}
}

// Execute implements command.Commander.
func (h *UpgradePlatformHandler) Execute(ctx context.Context, msg UpgradePlatformCommand) error {
	return h.inner.Execute(ctx, msg)
}
