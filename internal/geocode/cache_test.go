package geocode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/crimedb/internal/domain"
)

type countingResolver struct {
	calls  int
	result domain.Coordinates
	err    error
}

func (m *countingResolver) Resolve(_ context.Context, _ string) (domain.Coordinates, error) {
	m.calls++
	return m.result, m.err
}

func TestCachedResolver_HitsByNormalisedKey(t *testing.T) {
	inner := &countingResolver{result: domain.Coordinates{Lat: 51.5, Lng: -0.1}}
	cached, err := NewCachedResolver(inner, 10)
	require.NoError(t, err)

	c1, err := cached.Resolve(context.Background(), "sw1a 1aa")
	require.NoError(t, err)
	c2, err := cached.Resolve(context.Background(), "SW1A1AA")
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedResolver_DoesNotCacheFailures(t *testing.T) {
	inner := &countingResolver{err: ErrNotFound}
	cached, err := NewCachedResolver(inner, 10)
	require.NoError(t, err)

	_, err = cached.Resolve(context.Background(), "ZZ99 9ZZ")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Resolve(context.Background(), "ZZ99 9ZZ")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolver_Evicts(t *testing.T) {
	inner := &countingResolver{result: domain.Coordinates{Lat: 1, Lng: 1}}
	cached, err := NewCachedResolver(inner, 1)
	require.NoError(t, err)

	_, _ = cached.Resolve(context.Background(), "A")
	_, _ = cached.Resolve(context.Background(), "B")
	_, _ = cached.Resolve(context.Background(), "A")

	assert.Equal(t, 3, inner.calls)
}
