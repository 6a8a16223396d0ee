package cache

import "errors"

// ErrCacheMiss reports an absent or expired cache entry. Callers treat it as
// a signal to fall through to the authoritative store, never as a failure.
var ErrCacheMiss = errors.New("cache: key not found")
