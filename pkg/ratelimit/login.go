// Package ratelimit tracks failed login attempts per identifier in Redis so
// the limit holds across every API instance.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/observability"
)

// KeyPrefix namespaces the failure counters
const KeyPrefix = "auth:login_failures"

// TooManyAttemptsMessage is returned once the threshold is reached
const TooManyAttemptsMessage = "Too many failed login attempts. Please try again later."

// Config controls the failure threshold and window
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// DefaultConfig allows 5 failures per 60 seconds
func DefaultConfig() Config {
	return Config{MaxFailures: 5, Window: 60 * time.Second}
}

// LoginLimiter counts failed logins. The window is refreshed on every failure,
// so the counter expires Window after the most recent one.
type LoginLimiter struct {
	redis  *redis.Client
	config Config
}

// NewLoginLimiter creates a Redis-backed failed-login limiter
func NewLoginLimiter(redisClient *redis.Client, config Config) *LoginLimiter {
	if config.MaxFailures <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	return &LoginLimiter{redis: redisClient, config: config}
}

// Key returns the counter key; identifiers are case-insensitive
func Key(identifier string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, strings.ToLower(strings.TrimSpace(identifier)))
}

// Check fails with a rate-limited error when the identifier has reached the
// threshold. Redis errors fail open.
func (l *LoginLimiter) Check(ctx context.Context, identifier string) error {
	count, err := l.redis.Get(ctx, Key(identifier)).Int()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("login rate limit check failed; allowing attempt")
		return nil
	}
	if count >= l.config.MaxFailures {
		return apperrors.RateLimited(TooManyAttemptsMessage)
	}
	return nil
}

// RecordFailure increments the counter and refreshes its expiry atomically
func (l *LoginLimiter) RecordFailure(ctx context.Context, identifier string) {
	key := Key(identifier)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record login failure")
	}
}

// Clear resets the counter after a successful login
func (l *LoginLimiter) Clear(ctx context.Context, identifier string) {
	if err := l.redis.Del(ctx, Key(identifier)).Err(); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to clear login failures")
	}
}
