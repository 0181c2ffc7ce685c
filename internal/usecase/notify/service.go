package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

// Messenger доставляет текстовые уведомления администраторам.
type Messenger interface {
	SendText(ctx context.Context, text string) error
}

// Service обрабатывает события шины: сохраняет метрики и сообщает админам о переписке.
type Service struct {
	metrics   domain.BusinessMetricRepo
	profiles  domain.ProfileRepo
	messenger Messenger
	log       zerolog.Logger
}

// NewService создаёт обработчик событий. messenger может быть nil.
func NewService(metrics domain.BusinessMetricRepo, profiles domain.ProfileRepo, messenger Messenger, log zerolog.Logger) *Service {
	return &Service{metrics: metrics, profiles: profiles, messenger: messenger, log: log}
}

// Handle сохраняет событие как бизнес-метрику и пересылает сообщения пользователей.
func (s *Service) Handle(ctx context.Context, event domain.Event) error {
	if err := s.metrics.RecordBusinessMetric(ctx, domain.MetricFromEvent(event)); err != nil {
		return fmt.Errorf("запись метрики: %w", err)
	}
	if s.messenger == nil || !forwarded(event.Type) {
		return nil
	}
	text := Format(event, s.username(ctx, event.UserID))
	if err := s.messenger.SendText(ctx, text); err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("notify: уведомление не отправлено")
	}
	return nil
}

func forwarded(t domain.EventType) bool {
	return t == domain.EventCommentCreated || t == domain.EventCommentResponded
}

func (s *Service) username(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil || s.profiles == nil {
		return "Unbekannt"
	}
	profiles, err := s.profiles.ProfilesByIDs(ctx, []uuid.UUID{*userID})
	if err != nil {
		s.log.Debug().Err(err).Msg("notify: профиль не найден")
		return "Unbekannt"
	}
	if p, ok := profiles[*userID]; ok && p.Username != "" {
		return p.Username
	}
	return "Unbekannt"
}

// Format собирает текст уведомления.
func Format(event domain.Event, username string) string {
	var b strings.Builder
	switch event.Type {
	case domain.EventCommentCreated:
		fmt.Fprintf(&b, "Новое сообщение к двери %d от %s", event.DayNumber, username)
	case domain.EventCommentResponded:
		fmt.Fprintf(&b, "%s ответил(а) на реплику к двери %d", username, event.DayNumber)
	default:
		fmt.Fprintf(&b, "Событие %s, дверь %d", event.Type, event.DayNumber)
	}
	if text := strings.TrimSpace(event.Text); text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}
