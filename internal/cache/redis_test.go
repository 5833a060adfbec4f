package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/freight/internal/cache"
	"github.com/tournevent/freight/pkg/geo"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.getErr)
}

func TestDestinationCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := cache.NewDestinationCache(rdb, 0)
	cep := geo.MustPostalCode("01310100")
	coord := geo.Coordinate{Lat: -23.5614, Lng: -46.6559}

	_, ok, err := c.Get(ctx, cep)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, cep, coord))
	assert.Equal(t, cache.DefaultTTL, rdb.ttls["freight:cep:01310100"])

	got, ok, err := c.Get(ctx, cep)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, coord, got)
}

func TestDestinationCache_CorruptEntry(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[cache.Key("01310100")] = "not json"
	rdb.data[cache.Key("01310101")] = `{"lat":123,"lng":0}`

	c := cache.NewDestinationCache(rdb, time.Hour)

	_, ok, err := c.Get(context.Background(), "01310100")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(context.Background(), "01310101")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDestinationCache_Errors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	rdb.setErr = errors.New("connection refused")
	c := cache.NewDestinationCache(rdb, time.Hour)

	_, _, err := c.Get(context.Background(), "01310100")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "01310100", geo.Coordinate{}))
	assert.Error(t, c.Ping(context.Background()))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "freight:cep:06653010", cache.Key("06653010"))
}
