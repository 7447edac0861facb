// Package lock serializes onboarding runs of the same unit across
// processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

const keyOnboardingLock = "egs:onboarding:lock:%s:%s"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Key builds the lock key of a unit in an environment.
func Key(certificateKey, environment string) string {
	return fmt.Sprintf(keyOnboardingLock, strings.TrimSpace(environment), strings.TrimSpace(certificateKey))
}

type RedisLocker struct {
	client redis.Cmdable
	script *redis.Script
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the key only while it still holds token.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// NoopLocker always grants the lock. It serves single-process deployments
// without redis.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	return "noop", true, nil
}

func (NoopLocker) Release(context.Context, string, string) error {
	return nil
}

// New picks the redis locker when redis is configured.
func New(cfg config.Config) domain.Locker {
	if !cfg.Redis.Enabled() {
		return NoopLocker{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisLocker(client)
}
