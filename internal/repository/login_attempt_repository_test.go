package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoginAttempts(t *testing.T, max int, window time.Duration) (*LoginAttemptRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginAttemptRepository(client, max, window), mr
}

func TestLoginAttemptsBlockAfterLimit(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestLoginAttempts(t, 3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.RecordFailure(ctx, "alice"))
		blocked, err := repo.Blocked(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, blocked)
	}

	require.NoError(t, repo.RecordFailure(ctx, "alice"))
	blocked, err := repo.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = repo.Blocked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLoginAttemptsExpireAfterWindow(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestLoginAttempts(t, 1, time.Minute)

	require.NoError(t, repo.RecordFailure(ctx, "alice"))
	assert.Equal(t, time.Minute, mr.TTL("login_attempts:alice"))

	mr.FastForward(time.Minute + time.Second)
	blocked, err := repo.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLoginAttemptsWindowStartsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestLoginAttempts(t, 5, time.Minute)

	require.NoError(t, repo.RecordFailure(ctx, "alice"))
	mr.FastForward(30 * time.Second)
	require.NoError(t, repo.RecordFailure(ctx, "alice"))

	assert.Equal(t, 30*time.Second, mr.TTL("login_attempts:alice"))
}

func TestLoginAttemptsResetAndCaseFolding(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestLoginAttempts(t, 1, time.Minute)

	require.NoError(t, repo.RecordFailure(ctx, "Alice"))
	blocked, err := repo.Blocked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, repo.Reset(ctx, "ALICE"))
	assert.False(t, mr.Exists("login_attempts:alice"))
}

func TestLoginAttemptsReportRedisErrors(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestLoginAttempts(t, 1, time.Minute)
	mr.Close()

	_, err := repo.Blocked(ctx, "alice")
	assert.Error(t, err)
	assert.Error(t, repo.RecordFailure(ctx, "alice"))
}
