package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType — тип доменного события.
type EventType string

const (
	// EventDoorOpened фиксирует первое открытие двери пользователем.
	EventDoorOpened EventType = "door_opened"
	// EventCommentCreated фиксирует новое сообщение пользователя.
	EventCommentCreated EventType = "comment_created"
	// EventCommentReplied фиксирует ответ администратора.
	EventCommentReplied EventType = "comment_replied"
	// EventCommentResponded фиксирует ответ пользователя на реплику администратора.
	EventCommentResponded EventType = "comment_responded"
	// EventEntryChanged фиксирует изменение содержимого календаря.
	EventEntryChanged EventType = "entry_changed"
)

// Event — доменное событие для шины.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	DayNumber  int            `json:"day_number,omitempty"`
	Text       string         `json:"text,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent заполняет служебные поля события.
func NewEvent(t EventType, userID *uuid.UUID, day int) Event {
	return Event{ID: uuid.New(), Type: t, UserID: userID, DayNumber: day, OccurredAt: time.Now().UTC()}
}

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *uuid.UUID
	DayNumber  *int
	Metadata   map[string]any
	OccurredAt time.Time
}

// MetricFromEvent превращает событие шины в бизнесовую метрику.
func MetricFromEvent(e Event) BusinessMetric {
	m := BusinessMetric{Event: string(e.Type), UserID: e.UserID, Metadata: e.Metadata, OccurredAt: e.OccurredAt}
	if e.DayNumber > 0 {
		day := e.DayNumber
		m.DayNumber = &day
	}
	return m
}

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}

// NopPublisher ничего не публикует; используется, когда шина не настроена.
type NopPublisher struct{}

// Publish реализует EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
