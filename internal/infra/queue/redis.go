package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

const progressChannelPrefix = "advent:progress:"

// ProgressChannel возвращает имя канала подсказок прогресса пользователя.
func ProgressChannel(userID uuid.UUID) string {
	return progressChannelPrefix + userID.String()
}

// RedisProgress рассылает подсказки об обновлении прогресса через Redis pub/sub.
type RedisProgress struct {
	client *redis.Client
	log    zerolog.Logger
}

var (
	_ domain.ProgressNotifier   = (*RedisProgress)(nil)
	_ domain.ProgressSubscriber = (*RedisProgress)(nil)
)

// NewRedisProgress создаёт канал подсказок.
func NewRedisProgress(client *redis.Client, log zerolog.Logger) *RedisProgress {
	return &RedisProgress{client: client, log: log}
}

// NotifyProgress публикует запись прогресса в канал её владельца.
func (p *RedisProgress) NotifyProgress(ctx context.Context, rec domain.ProgressRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	channel := ProgressChannel(rec.UserID)
	start := time.Now()
	err = p.client.Publish(ctx, channel, payload).Err()
	metrics.ObserveNetworkRequest("redis", "publish", progressChannelPrefix, start, err)
	if err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// SubscribeProgress подписывает на канал пользователя. Канал закрывается после
// вызова cancel или отмены ctx. Некорректные сообщения пропускаются.
func (p *RedisProgress) SubscribeProgress(ctx context.Context, userID uuid.UUID) (<-chan domain.ProgressRecord, func(), error) {
	sub := p.client.Subscribe(ctx, ProgressChannel(userID))
	start := time.Now()
	_, err := sub.Receive(ctx)
	metrics.ObserveNetworkRequest("redis", "subscribe", progressChannelPrefix, start, err)
	if err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe progress: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.ProgressRecord, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var rec domain.ProgressRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					p.log.Debug().Err(err).Msg("queue: некорректная подсказка прогресса")
					continue
				}
				select {
				case out <- rec:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
