package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Ping(context.Context) error { return nil }
func (f *fakeCounter) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (f *fakeCounter) Get(context.Context, string) (string, error) { return "", ErrCacheMiss }
func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeCounter) Expire(_ context.Context, key string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = d
	return nil
}
func (f *fakeCounter) Del(context.Context, ...string) error { return nil }
func (f *fakeCounter) Close() error                         { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCounter()
	rl := NewRateLimiter(fc)
	now := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	rl.now = func() time.Time { return now }
	key := UserActionKey("u1", "contact")
	assert.Equal(t, "rate_limit:u1:contact", key)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	bucket := windowKey(key, now, time.Minute)
	assert.Equal(t, int64(4), fc.counts[bucket])
	assert.Equal(t, 2*time.Minute, fc.expires[bucket], "expiry set on first hit")

	// next window starts from zero
	now = now.Add(time.Minute)
	ok, err = rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, bucket, windowKey(key, now, time.Minute))
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	fc := newFakeCounter()
	fc.incrErr = errors.New("redis down")
	_, err := NewRateLimiter(fc).Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
}
