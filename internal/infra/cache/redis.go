package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript продлевает ключ, только если он всё ещё принадлежит владельцу.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker реализует domain.Locker через SET NX.
type RedisLocker struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ domain.Locker = (*RedisLocker)(nil)

// NewRedisLocker создаёт блокировщик.
func NewRedisLocker(client *redis.Client, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, log: log}
}

// TryLock захватывает ключ на ttl. Если ключ занят, возвращает domain.ErrBusy.
// Пока блокировка не снята, ключ продлевается каждые ttl/3.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	start := time.Now()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", key, start, err)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBusy
	}

	renewCtx, stop := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		keepAlive(renewCtx, ttl/3, l.log.With().Str("key", key).Logger(), func(ctx context.Context) (bool, error) {
			start := time.Now()
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
			metrics.ObserveNetworkRequest("redis", "extend", key, start, err)
			return n == 1, err
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-renewed
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			start := time.Now()
			err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			metrics.ObserveNetworkRequest("redis", "unlock", key, start, err)
			if err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("cache: не удалось снять блокировку")
			}
		})
	}, nil
}

// keepAlive вызывает extend каждые every, пока ctx жив. Если extend сообщает,
// что ключ уже чужой, продление прекращается.
func keepAlive(ctx context.Context, every time.Duration, log zerolog.Logger, extend func(context.Context) (bool, error)) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		callCtx, cancel := context.WithTimeout(ctx, every)
		held, err := extend(callCtx)
		cancel()
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("cache: не удалось продлить блокировку")
		case !held:
			log.Warn().Msg("cache: блокировка потеряна")
			return
		}
	}
}
