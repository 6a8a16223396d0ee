package settings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository stores configuration in-memory for tests and lightweight
// deployments.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]Setting
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{settings: make(map[string]Setting)}
}

// Get retrieves a setting by key.
func (r *MemoryRepository) Get(_ context.Context, key string) (*Setting, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, ErrKeyRequired
	}

	r.mu.RLock()
	setting, ok := r.settings[trimmed]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSettingNotFound
	}
	cloned := setting
	return &cloned, nil
}

// Set creates or updates a setting.
func (r *MemoryRepository) Set(_ context.Context, key, value string) (*Setting, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, ErrKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	setting, ok := r.settings[trimmed]
	if !ok {
		setting = Setting{ID: uuid.New(), Key: trimmed}
	}
	setting.Value = value
	setting.UpdatedAt = time.Now().UTC()
	r.settings[trimmed] = setting

	cloned := setting
	return &cloned, nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ErrKeyRequired
	}

	r.mu.Lock()
	delete(r.settings, trimmed)
	r.mu.Unlock()
	return nil
}

// List returns the stored settings ordered by key.
func (r *MemoryRepository) List(context.Context) ([]*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Setting, 0, len(r.settings))
	for _, setting := range r.settings {
		cloned := setting
		out = append(out, &cloned)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
