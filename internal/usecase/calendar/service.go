package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

// Grid описывает календарь пользователя.
type Grid struct {
	Doors       []Door `json:"doors"`
	CurrentDay  int    `json:"current_day"`
	UnreadCount int    `json:"unread_count"`
	IsAdmin     bool   `json:"is_admin"`
}

// OpenedDoor содержит открытую дверь и её лайки.
type OpenedDoor struct {
	Entry     domain.CalendarEntry `json:"entry"`
	FirstOpen bool                 `json:"first_open"`
	LikeCount int                  `json:"like_count"`
	HasLiked  bool                 `json:"has_liked"`
}

// Service отвечает за календарь пользователя и открытие дверей.
type Service struct {
	entries  domain.EntryRepo
	progress domain.ProgressRepo
	likes    domain.LikeRepo
	comments domain.CommentRepo
	notifier domain.ProgressNotifier
	events   domain.EventPublisher
	gate     Gate
	log      zerolog.Logger
	now      func() time.Time
}

// Option настраивает сервис.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger задаёт логгер.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithNotifier задаёт рассылку подсказок о прогрессе.
func WithNotifier(n domain.ProgressNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithEvents задаёт шину событий.
func WithEvents(p domain.EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// NewService создаёт сервис календаря.
func NewService(entries domain.EntryRepo, progress domain.ProgressRepo, likes domain.LikeRepo, comments domain.CommentRepo, gate Gate, opts ...Option) *Service {
	s := &Service{
		entries:  entries,
		progress: progress,
		likes:    likes,
		comments: comments,
		events:   domain.NopPublisher{},
		gate:     gate,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gate возвращает вычислитель доступности.
func (s *Service) Gate() Gate {
	return s.gate
}

// Grid строит календарь для сессии.
func (s *Service) Grid(ctx context.Context, session domain.Session) (Grid, error) {
	entries, err := s.entries.ListEntries(ctx)
	if err != nil {
		return Grid{}, fmt.Errorf("получение записей: %w", err)
	}
	progress, err := s.progress.ListProgress(ctx, session.UserID)
	if err != nil {
		return Grid{}, fmt.Errorf("получение прогресса: %w", err)
	}
	unread, err := s.comments.CountUnread(ctx, session.UserID)
	if err != nil {
		return Grid{}, fmt.Errorf("подсчёт непрочитанных: %w", err)
	}
	now := s.now()
	return Grid{
		Doors:       s.gate.Doors(now, session.Role, entries, progress),
		CurrentDay:  s.gate.CurrentDay(now),
		UnreadCount: unread,
		IsAdmin:     session.IsAdmin(),
	}, nil
}

// OpenDoor открывает дверь: проверяет доступность, загружает запись и один раз
// фиксирует прогресс. Повторное открытие не считается ошибкой.
func (s *Service) OpenDoor(ctx context.Context, session domain.Session, day int) (OpenedDoor, error) {
	if day < 1 || day > s.gate.TotalDays() {
		return OpenedDoor{}, domain.ErrDayOutOfRange
	}
	progress, err := s.progress.ListProgress(ctx, session.UserID)
	if err != nil {
		return OpenedDoor{}, fmt.Errorf("получение прогресса: %w", err)
	}
	alreadyOpened := false
	for _, p := range progress {
		if p.DayNumber == day {
			alreadyOpened = true
			break
		}
	}
	if s.gate.Status(s.now(), session.Role, day, alreadyOpened) == DoorLocked {
		return OpenedDoor{}, domain.ErrDoorLocked
	}

	entry, err := s.entries.GetEntryByDay(ctx, day)
	if err != nil {
		return OpenedDoor{}, err
	}

	created, err := s.progress.InsertProgress(ctx, session.UserID, day)
	if err != nil {
		return OpenedDoor{}, fmt.Errorf("сохранение прогресса: %w", err)
	}
	if created {
		metrics.IncDoorOpened(day)
		s.afterFirstOpen(ctx, session, day)
	}

	count, err := s.likes.CountLikes(ctx, day)
	if err != nil {
		return OpenedDoor{}, fmt.Errorf("подсчёт лайков: %w", err)
	}
	liked, err := s.likes.HasLiked(ctx, session.UserID, day)
	if err != nil {
		return OpenedDoor{}, fmt.Errorf("проверка лайка: %w", err)
	}
	return OpenedDoor{
		Entry:     entry,
		FirstOpen: created,
		LikeCount: count,
		HasLiked:  liked,
	}, nil
}

// Уведомления вторичны: их ошибки только логируются.
func (s *Service) afterFirstOpen(ctx context.Context, session domain.Session, day int) {
	rec := domain.ProgressRecord{UserID: session.UserID, DayNumber: day, OpenedAt: s.now().UTC()}
	if s.notifier != nil {
		if err := s.notifier.NotifyProgress(ctx, rec); err != nil {
			s.log.Warn().Err(err).Int("day", day).Msg("calendar: не удалось разослать подсказку о прогрессе")
		}
	}
	userID := session.UserID
	if err := s.events.Publish(ctx, domain.NewEvent(domain.EventDoorOpened, &userID, day)); err != nil {
		s.log.Warn().Err(err).Int("day", day).Msg("calendar: не удалось опубликовать событие")
	}
}
