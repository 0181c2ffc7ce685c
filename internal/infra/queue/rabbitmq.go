package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

// RabbitBus публикует и читает доменные события через topic exchange.
type RabbitBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
	mu       sync.Mutex
}

var _ domain.EventPublisher = (*RabbitBus)(nil)

// NewRabbitBus подключается к брокеру и объявляет exchange.
func NewRabbitBus(url, exchange string, log zerolog.Logger) (*RabbitBus, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if exchange == "" {
		return nil, errors.New("exchange name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitBus{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

// Publish отправляет событие с ключом маршрутизации по его типу.
func (b *RabbitBus) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         payload,
	}
	b.mu.Lock()
	start := time.Now()
	err = b.ch.PublishWithContext(ctx, b.exchange, string(event.Type), false, false, msg)
	b.mu.Unlock()
	metrics.ObserveNetworkRequest("rabbitmq", "publish", b.exchange, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Handler обрабатывает одно событие. Ошибка возвращает сообщение в очередь один раз.
type Handler func(ctx context.Context, event domain.Event) error

// Consume объявляет очередь, привязывает её ко всем событиям exchange и
// обрабатывает сообщения до отмены ctx.
func (b *RabbitBus) Consume(ctx context.Context, queue string, handle Handler) error {
	if _, err := b.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(queue, "#", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := b.ch.Qos(8, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: канал доставки закрыт")
			}
			b.handleDelivery(ctx, d, handle)
		}
	}
}

func (b *RabbitBus) handleDelivery(ctx context.Context, d amqp.Delivery, handle Handler) {
	var event domain.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		b.log.Warn().Err(err).Str("message_id", d.MessageId).Msg("queue: некорректное событие отброшено")
		metrics.IncEventConsumed(d.Type, err)
		_ = d.Nack(false, false)
		return
	}
	err := handle(ctx, event)
	metrics.IncEventConsumed(string(event.Type), err)
	if err != nil {
		b.log.Error().Err(err).Str("event", string(event.Type)).Bool("redelivered", d.Redelivered).Msg("queue: обработка события не удалась")
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	if err := d.Ack(false); err != nil {
		b.log.Warn().Err(err).Msg("queue: ack не удался")
	}
}

// Close закрывает канал и соединение.
func (b *RabbitBus) Close() error {
	return errors.Join(b.ch.Close(), b.conn.Close())
}
