package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/crm/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Lease keeps a job from running on more than one scheduler instance at a
// time. Acquire returns an empty token when another holder owns the key.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLease struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return "", errors.New("lease ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (l *RedisLease) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// LocalLease holds leases in process memory for single instance deployments
// that run without Redis. A key stays held until released or its ttl passes.
type LocalLease struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]localHold
}

type localHold struct {
	token   string
	expires time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now, leases: map[string]localHold{}}
}

func (l *LocalLease) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return "", errors.New("lease ttl must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if hold, ok := l.leases[key]; ok && now.Before(hold.expires) {
		return "", nil
	}
	token := uuid.NewString()
	l.leases[key] = localHold{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *LocalLease) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.leases[key]; ok && hold.token == token {
		delete(l.leases, key)
	}
	return nil
}

func NewLease(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Lease {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("scheduler lease is local, REDIS_ADDR not set")
		return NewLocalLease()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLease(client)
}
