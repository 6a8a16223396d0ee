package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Well-known configuration keys consumed by the application factory.
const (
	// KeyTheme names the active visual theme.
	KeyTheme = "ctf_theme"
	// KeyVersion records the platform version the schema was last touched by.
	KeyVersion = "ctf_version"
	// KeyImportInProgress is the cooperative startup lock set during bulk imports.
	KeyImportInProgress = "import_in_progress"
	// KeyLatestVersion caches the most recent version reported by the update check.
	KeyLatestVersion = "version_latest"
)

// ErrSettingNotFound indicates that a requested configuration key does not exist.
var ErrSettingNotFound = errors.New("settings: key not found")

// ErrKeyRequired indicates that settings operations require a non-empty key.
var ErrKeyRequired = errors.New("settings: key is required")

// Setting is a single configuration key/value pair.
type Setting struct {
	bun.BaseModel `bun:"table:arena_config,alias:cfg"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Key       string    `bun:"key,notnull,unique"`
	Value     string    `bun:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Repository exposes persistence operations for runtime configuration.
type Repository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Set(ctx context.Context, key, value string) (*Setting, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*Setting, error)
}
