package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

const (
	reorderLockKey = "advent:entries:reorder"
	reorderLockTTL = 30 * time.Second
)

// Direction — шаг перемещения записи в списке.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Service управляет записями календаря в админке.
type Service struct {
	repo       domain.EntryRepo
	translator domain.Translator
	locker     domain.Locker
	events     domain.EventPublisher
	totalDays  int
	log        zerolog.Logger
}

// NewService создаёт сервис записей. translator и locker могут быть nil.
func NewService(repo domain.EntryRepo, translator domain.Translator, locker domain.Locker, events domain.EventPublisher, totalDays int, log zerolog.Logger) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{repo: repo, translator: translator, locker: locker, events: events, totalDays: totalDays, log: log}
}

// List возвращает все записи по возрастанию дня.
func (s *Service) List(ctx context.Context) ([]domain.CalendarEntry, error) {
	return s.repo.ListEntries(ctx)
}

// Get возвращает запись по id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.CalendarEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// Create добавляет запись на свободный день.
func (s *Service) Create(ctx context.Context, in domain.EntryInput) (domain.CalendarEntry, error) {
	in = normalizeInput(in)
	if err := s.validate(in); err != nil {
		return domain.CalendarEntry{}, err
	}
	entry, err := s.repo.CreateEntry(ctx, in)
	if err != nil {
		return domain.CalendarEntry{}, fmt.Errorf("создание записи: %w", err)
	}
	s.publishChanged(ctx, entry.DayNumber, "created")
	return entry, nil
}

// Update меняет содержимое записи. Номер дня при редактировании не меняется.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in domain.EntryInput) (domain.CalendarEntry, error) {
	current, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return domain.CalendarEntry{}, err
	}
	in = normalizeInput(in)
	in.DayNumber = current.DayNumber
	if err := s.validate(in); err != nil {
		return domain.CalendarEntry{}, err
	}
	entry, err := s.repo.UpdateEntry(ctx, id, in)
	if err != nil {
		return domain.CalendarEntry{}, fmt.Errorf("обновление записи: %w", err)
	}
	s.publishChanged(ctx, entry.DayNumber, "updated")
	return entry, nil
}

// Delete удаляет запись. Лайки и комментарии дня остаются.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("удаление записи: %w", err)
	}
	s.publishChanged(ctx, current.DayNumber, "deleted")
	return nil
}

// Translate переводит заголовок и историю на английский. Пустой ответ считается ошибкой.
func (s *Service) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Story = strings.TrimSpace(req.Story)
	if req.Title == "" || req.Story == "" {
		return domain.Translation{}, fmt.Errorf("%w: нужны заголовок и история", domain.ErrValidation)
	}
	if s.translator == nil {
		return domain.Translation{}, fmt.Errorf("%w: перевод не настроен", domain.ErrUpstream)
	}
	return s.translator.Translate(ctx, req)
}

// MoveStep меняет запись местами с соседней. Возвращает актуальный порядок из хранилища.
func (s *Service) MoveStep(ctx context.Context, id uuid.UUID, dir Direction) ([]domain.CalendarEntry, error) {
	return s.reorder(ctx, func(list []domain.CalendarEntry) ([]domain.DayAssignment, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, domain.ErrEntryNotFound
		}
		var j int
		switch dir {
		case DirectionUp:
			j = i - 1
		case DirectionDown:
			j = i + 1
		default:
			return nil, fmt.Errorf("%w: неизвестное направление %q", domain.ErrValidation, dir)
		}
		if j < 0 || j >= len(list) {
			return nil, nil
		}
		return SwapAssignments(list[i], list[j]), nil
	})
}

// Move переносит запись на позицию toIndex (с нуля) и перенумеровывает список.
func (s *Service) Move(ctx context.Context, id uuid.UUID, toIndex int) ([]domain.CalendarEntry, error) {
	return s.reorder(ctx, func(list []domain.CalendarEntry) ([]domain.DayAssignment, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, domain.ErrEntryNotFound
		}
		if toIndex < 0 || toIndex >= len(list) {
			return nil, fmt.Errorf("%w: позиция %d вне списка из %d записей", domain.ErrValidation, toIndex, len(list))
		}
		return ReindexAssignments(list, MoveIndex(list, i, toIndex)), nil
	})
}

func (s *Service) reorder(ctx context.Context, plan func([]domain.CalendarEntry) ([]domain.DayAssignment, error)) ([]domain.CalendarEntry, error) {
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, reorderLockKey, reorderLockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	list, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение записей: %w", err)
	}
	assignments, err := plan(list)
	if err != nil {
		return list, err
	}
	if len(assignments) == 0 {
		return list, nil
	}
	err = s.repo.ReassignDays(ctx, assignments)
	metrics.IncReorder(err)
	if err != nil {
		s.log.Error().Err(err).Int("assignments", len(assignments)).Msg("entries: перестановка не удалась, перечитываем порядок")
		fresh, listErr := s.repo.ListEntries(ctx)
		if listErr != nil {
			return nil, errors.Join(fmt.Errorf("перестановка: %w", err), listErr)
		}
		return fresh, fmt.Errorf("перестановка: %w", err)
	}
	s.publishChanged(ctx, 0, "reordered")
	return s.repo.ListEntries(ctx)
}

func (s *Service) validate(in domain.EntryInput) error {
	if in.DayNumber < 1 || in.DayNumber > s.totalDays {
		return fmt.Errorf("%w: день %d, допустимо 1..%d", domain.ErrDayOutOfRange, in.DayNumber, s.totalDays)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: заголовок обязателен", domain.ErrValidation)
	}
	if in.Story == "" {
		return fmt.Errorf("%w: история обязательна", domain.ErrValidation)
	}
	return nil
}

func (s *Service) publishChanged(ctx context.Context, day int, action string) {
	event := domain.NewEvent(domain.EventEntryChanged, nil, day)
	event.Metadata = map[string]any{"action": action}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("entries: не удалось опубликовать событие")
	}
}

func normalizeInput(in domain.EntryInput) domain.EntryInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Story = strings.TrimSpace(in.Story)
	in.TitleEn = strings.TrimSpace(in.TitleEn)
	in.StoryEn = strings.TrimSpace(in.StoryEn)
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	urls := make([]string, 0, len(in.ImageURLs))
	for _, u := range in.ImageURLs {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	in.ImageURLs = urls
	return in
}

func indexOf(list []domain.CalendarEntry, id uuid.UUID) int {
	for i, e := range list {
		if e.ID == id {
			return i
		}
	}
	return -1
}
