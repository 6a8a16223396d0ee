package interfaces

import (
	"context"
	"time"
)

// CacheProvider is the process-wide key/value cache shared by configuration
// lookups and session storage. Implementations must be safe for concurrent use.
type CacheProvider interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
