package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"

	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
)

// MemoryStateRepository holds snapshot values in a bounded in-process cache.
// Values never expire but may be evicted when the cache is full.
type MemoryStateRepository struct {
	cache *freecache.Cache
}

// NewMemoryStateRepository constructs an in-memory state store.
func NewMemoryStateRepository(cache *freecache.Cache) *MemoryStateRepository {
	return &MemoryStateRepository{cache: cache}
}

func (r *MemoryStateRepository) Get(_ context.Context, key string) ([]byte, error) {
	value, err := r.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, appErrors.ErrStateMiss
		}
		return nil, fmt.Errorf("memory get %s: %w", key, err)
	}
	return value, nil
}

func (r *MemoryStateRepository) Set(_ context.Context, key string, value []byte) error {
	if err := r.cache.Set([]byte(key), value, 0); err != nil {
		return fmt.Errorf("memory set %s: %w", key, err)
	}
	return nil
}
