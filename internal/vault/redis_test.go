package vault

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, cooldown time.Duration) (*RedisStore, *fakeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, cooldown)
	clock := newFakeClock()
	s.now = clock.Now
	return s, clock
}

func TestRedisStore_Register(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, DefaultCooldown)

	require.NoError(t, s.Register(ctx, "alice", envelopes(10)))
	assert.ErrorIs(t, s.Register(ctx, "alice", envelopes(10)), ErrAlreadyExists)
	assert.ErrorIs(t, s.Register(ctx, "al", envelopes(10)), ErrInvalidInput)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisStore_RetrieveScenario(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestRedisStore(t, DefaultCooldown)
	require.NoError(t, s.Register(ctx, "alice", envelopes(10)))

	r, err := s.RetrieveNext(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "env0", r.Envelope)
	assert.Equal(t, 9, r.Remaining)
	assert.Equal(t, 10, r.Total)

	_, err = s.RetrieveNext(ctx, "alice")
	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 5, rle.WaitMinutes())

	clock.Advance(DefaultCooldown)

	r, err = s.RetrieveNext(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "env1", r.Envelope)
	assert.Equal(t, 8, r.Remaining)
}

func TestRedisStore_RetrieveNotFound(t *testing.T) {
	s, _ := newTestRedisStore(t, DefaultCooldown)
	_, err := s.RetrieveNext(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Exhaustion(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestRedisStore(t, DefaultCooldown)
	require.NoError(t, s.Register(ctx, "alice", envelopes(2)))

	for i := 0; i < 2; i++ {
		_, err := s.RetrieveNext(ctx, "alice")
		require.NoError(t, err)
		clock.Advance(DefaultCooldown)
	}

	_, err := s.RetrieveNext(ctx, "alice")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestRedisStore_Reset(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, DefaultCooldown)

	assert.ErrorIs(t, s.Reset(ctx, "alice"), ErrNotFound)

	require.NoError(t, s.Register(ctx, "alice", envelopes(3)))
	require.NoError(t, s.Reset(ctx, "alice"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// Username is free again, with no inherited cooldown or history.
	require.NoError(t, s.Register(ctx, "alice", envelopes(5)))
	r, err := s.RetrieveNext(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "env0", r.Envelope)
	assert.Equal(t, 4, r.Remaining)
}
