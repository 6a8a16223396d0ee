package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewSettingRepository creates a go-repository-bun repository for settings.
func NewSettingRepository(db *bun.DB) repository.Repository[*Setting] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Setting]{
		NewRecord:          func() *Setting { return &Setting{} },
		GetID:              func(s *Setting) uuid.UUID { return s.ID },
		SetID:              func(s *Setting, id uuid.UUID) { s.ID = id },
		GetIdentifier:      func() string { return "key" },
		GetIdentifierValue: func(s *Setting) string { return s.Key },
	})
}

// BunRepository implements Repository on top of bun with optional caching.
type BunRepository struct {
	db   *bun.DB
	repo repository.Repository[*Setting]
}

var _ Repository = (*BunRepository)(nil)

// NewBunRepository creates a settings repository without caching.
func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

// NewBunRepositoryWithCache creates a settings repository with caching support.
func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunRepository {
	base := NewSettingRepository(db)
	if cacheService != nil && serializer != nil {
		base = repositorycache.New(base, cacheService, serializer)
	}
	return &BunRepository{db: db, repo: base}
}

// Get retrieves a setting by key.
func (r *BunRepository) Get(ctx context.Context, key string) (*Setting, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, ErrKeyRequired
	}
	record, err := r.repo.GetByIdentifier(ctx, trimmed)
	if err != nil {
		return nil, mapRepositoryError(err, trimmed)
	}
	return record, nil
}

// Set creates or updates a setting.
func (r *BunRepository) Set(ctx context.Context, key, value string) (*Setting, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, ErrKeyRequired
	}

	existing, err := r.repo.GetByIdentifier(ctx, trimmed)
	if err != nil {
		if !errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, fmt.Errorf("settings repository error: %w", err)
		}
		record, err := r.repo.Create(ctx, &Setting{
			ID:        uuid.New(),
			Key:       trimmed,
			Value:     value,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("settings repository error: %w", err)
		}
		return record, nil
	}

	existing.Value = value
	existing.UpdatedAt = time.Now().UTC()
	record, err := r.repo.Update(ctx, existing)
	if err != nil {
		return nil, mapRepositoryError(err, trimmed)
	}
	return record, nil
}

// Delete removes a setting by key.
func (r *BunRepository) Delete(ctx context.Context, key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ErrKeyRequired
	}
	if _, err := r.db.NewDelete().Model((*Setting)(nil)).Where("?TableAlias.key = ?", trimmed).Exec(ctx); err != nil {
		return fmt.Errorf("settings repository error: %w", err)
	}
	return nil
}

// List returns every stored setting.
func (r *BunRepository) List(ctx context.Context) ([]*Setting, error) {
	records, _, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings repository error: %w", err)
	}
	return records, nil
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return fmt.Errorf("settings repository error: %w", err)
}
