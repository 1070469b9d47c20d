package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "sg:login"

type Config struct {
	// MaxAttempts is the number of failures tolerated per window.
	MaxAttempts int
	Window      time.Duration
	ThrottleIP  bool
	Prefix      string
}

// Limiter counts failed logins per username and, optionally, per client IP.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client is nil")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("rate: max attempts must be > 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("rate: window must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Limiter{redis: redisClient, config: cfg}, nil
}

// Check returns ErrRateLimited once the username or IP has used up its
// failure budget for the current window.
func (l *Limiter) Check(ctx context.Context, username, ip string) error {
	if err := l.checkCounter(ctx, l.userKey(username)); err != nil {
		return err
	}
	if l.config.ThrottleIP && ip != "" {
		return l.checkCounter(ctx, l.ipKey(ip))
	}
	return nil
}

// RecordFailure counts a failed attempt. It returns ErrRateLimited when this
// attempt exhausted the budget.
func (l *Limiter) RecordFailure(ctx context.Context, username, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.userKey(username))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxAttempts)

	if l.config.ThrottleIP && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the username counter after a successful login. The IP counter
// is left to expire so one good account cannot unlock an address.
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failures counted for username in the current window.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) userKey(username string) string {
	return l.config.Prefix + ":u:" + username
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":ip:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
