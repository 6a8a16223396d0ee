package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

const cacheKeyPrefix = "config:"

// Service answers configuration lookups through the shared cache, falling back
// to the repository on a miss. Writes go to the repository first and refresh
// the cached value afterwards so every reader observes the new value.
type Service struct {
	repo     Repository
	cache    interfaces.CacheProvider
	cacheTTL time.Duration
	logger   interfaces.Logger
}

var _ interfaces.SettingsStore = (*Service)(nil)

// ServiceOption configures the settings service.
type ServiceOption func(*Service)

// WithCache attaches the shared cache used for read-through lookups.
func WithCache(cache interfaces.CacheProvider, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs the settings service around a repository.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored value for key, or ErrSettingNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrKeyRequired
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKeyPrefix+trimmed); err == nil {
			if value, ok := cached.(string); ok {
				return value, nil
			}
		}
	}

	record, err := s.repo.Get(ctx, trimmed)
	if err != nil {
		return "", err
	}

	s.fill(ctx, trimmed, record.Value)
	return record.Value, nil
}

// GetDefault returns the stored value for key or fallback when unset.
func (s *Service) GetDefault(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// Set persists a value and refreshes the cached copy.
func (s *Service) Set(ctx context.Context, key, value string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ErrKeyRequired
	}

	if _, err := s.repo.Set(ctx, trimmed, value); err != nil {
		return err
	}
	s.fill(ctx, trimmed, value)
	return nil
}

// Delete removes a key from the repository and the cache.
func (s *Service) Delete(ctx context.Context, key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ErrKeyRequired
	}

	if err := s.repo.Delete(ctx, trimmed); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKeyPrefix+trimmed); err != nil {
			s.logger.Warn("settings cache invalidation failed", "key", trimmed, "error", err)
		}
	}
	return nil
}

// ImportInProgress reports whether the shared bulk-import lock is held.
func (s *Service) ImportInProgress(ctx context.Context) bool {
	value, err := s.Get(ctx, KeyImportInProgress)
	if err != nil {
		if !errors.Is(err, ErrSettingNotFound) {
			s.logger.Warn("import flag lookup failed", "error", err)
		}
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false":
		return false
	default:
		return true
	}
}

// SetImportInProgress toggles the shared bulk-import lock.
func (s *Service) SetImportInProgress(ctx context.Context, inProgress bool) error {
	if inProgress {
		return s.Set(ctx, KeyImportInProgress, "1")
	}
	return s.Delete(ctx, KeyImportInProgress)
}

func (s *Service) fill(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+key, value, s.cacheTTL); err != nil {
		s.logger.Warn("settings cache fill failed", "key", key, "error", err)
	}
}
