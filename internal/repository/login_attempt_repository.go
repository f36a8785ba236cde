package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginAttemptPrefix = "login_attempts:"

// LoginAttemptRepository counts failed logins per username in Redis.
// Counters expire after the lockout window.
type LoginAttemptRepository struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewLoginAttemptRepository constructs repository.
func NewLoginAttemptRepository(client *redis.Client, maxAttempts int, window time.Duration) *LoginAttemptRepository {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginAttemptRepository{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Blocked reports whether username has reached the failure limit.
func (r *LoginAttemptRepository) Blocked(ctx context.Context, username string) (bool, error) {
	count, err := r.client.Get(ctx, attemptKey(username)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login attempts: %w", err)
	}
	return count >= r.maxAttempts, nil
}

// RecordFailure increments the counter, starting the window on the first failure.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, username string) error {
	key := attemptKey(username)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("expire login attempts: %w", err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (r *LoginAttemptRepository) Reset(ctx context.Context, username string) error {
	if err := r.client.Del(ctx, attemptKey(username)).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func attemptKey(username string) string {
	return loginAttemptPrefix + strings.ToLower(strings.TrimSpace(username))
}
