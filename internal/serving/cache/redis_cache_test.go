package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/cache"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
)

// fakeStore is a minimal in-memory double for the narrow store interface
// RedisCache calls, round-tripping values through JSON the way the real
// redis.Cache's JSONSerializer does.
type fakeStore struct {
	data map[string][]byte
	err  error
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func (s *fakeStore) Get(_ context.Context, key string, dest interface{}) error {
	if s.err != nil {
		return s.err
	}
	raw, ok := s.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (s *fakeStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *fakeStore) Delete(_ context.Context, keys ...string) error {
	if s.err != nil {
		return s.err
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func TestRedisCache_SetThenGet(t *testing.T) {
	fs := newFakeStore()
	c := cache.NewRedisCache(fs, "modelserve:status:", 5*time.Second, logging.NewNopLogger())

	snaps := []manager.Snapshot{{Version: 1, State: "AVAILABLE"}}
	c.Set("resnet", snaps)

	out, ok := c.Get("resnet")
	require.True(t, ok)
	assert.Equal(t, snaps, out)
}

func TestRedisCache_Get_MissReturnsFalse(t *testing.T) {
	fs := newFakeStore()
	c := cache.NewRedisCache(fs, "modelserve:status:", 5*time.Second, logging.NewNopLogger())

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestRedisCache_Invalidate_RemovesEntry(t *testing.T) {
	fs := newFakeStore()
	c := cache.NewRedisCache(fs, "modelserve:status:", 5*time.Second, logging.NewNopLogger())

	c.Set("resnet", []manager.Snapshot{{Version: 1}})
	c.Invalidate("resnet")

	_, ok := c.Get("resnet")
	assert.False(t, ok)
}

func TestRedisCache_BackendErrorTreatedAsMiss(t *testing.T) {
	fs := newFakeStore()
	fs.err = errors.New("connection refused")
	c := cache.NewRedisCache(fs, "modelserve:status:", 5*time.Second, logging.NewNopLogger())

	_, ok := c.Get("resnet")
	assert.False(t, ok)
	assert.NotPanics(t, func() { c.Set("resnet", nil) })
	assert.NotPanics(t, func() { c.Invalidate("resnet") })
}
