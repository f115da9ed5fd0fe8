package geocode

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/varoOP/crimedb/internal/domain"
)

// CachedResolver wraps a resolver with an in-memory LRU cache keyed by the
// normalised location. Failures are not cached.
type CachedResolver struct {
	inner domain.CoordinateResolver
	cache *lru.Cache[string, domain.Coordinates]
}

var _ domain.CoordinateResolver = (*CachedResolver)(nil)

func NewCachedResolver(inner domain.CoordinateResolver, size int) (*CachedResolver, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, domain.Coordinates](size)
	if err != nil {
		return nil, errors.Wrap(err, "create geocode cache")
	}
	return &CachedResolver{inner: inner, cache: cache}, nil
}

func (c *CachedResolver) Resolve(ctx context.Context, location string) (domain.Coordinates, error) {
	key := domain.NormalizeLocationKey(location)
	if coords, ok := c.cache.Get(key); ok {
		return coords, nil
	}

	coords, err := c.inner.Resolve(ctx, location)
	if err != nil {
		return coords, err
	}

	c.cache.Add(key, coords)
	return coords, nil
}
