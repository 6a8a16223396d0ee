package interfaces

import "context"

// SettingsStore exposes the process-wide mutable configuration table. The
// active theme, the stored platform version, and the import lock all live
// here; values are injected by reference so tests can substitute a fake store.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetDefault(ctx context.Context, key, fallback string) string
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
