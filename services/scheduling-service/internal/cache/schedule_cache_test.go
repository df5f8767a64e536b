package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClient struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memClient) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = string(value.([]byte))
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestScheduleCacheRoundTrip(t *testing.T) {
	client := newMemClient()
	c := New(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	s := model.Schedule{
		ID:       "s1",
		OwnerID:  "u1",
		Timezone: "Europe/Berlin",
		Availabilities: []model.AvailabilityWindow{
			{DayOfWeek: model.Monday, StartTime: "09:00", EndTime: "12:00"},
		},
	}
	require.NoError(t, c.Set(ctx, s))
	assert.Equal(t, time.Minute, client.ttl["scheduling:schedule:u1"])

	got, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.Timezone, got.Timezone)
	assert.Equal(t, s.Availabilities, got.Availabilities)

	require.NoError(t, c.Invalidate(ctx, "u1"))
	_, ok, _ = c.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestScheduleCacheSurfacesErrors(t *testing.T) {
	client := newMemClient()
	client.err = errors.New("connection reset")
	_, _, err := New(client, 0).Get(context.Background(), "u1")
	assert.Error(t, err)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := New(nil, 0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, model.Schedule{OwnerID: "u1"}))
	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "u1"))
}
