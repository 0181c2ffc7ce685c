package reactions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

// MaxTextLength ограничивает длину комментариев и ответов в символах.
const MaxTextLength = 2000

const unknownUsername = "Unbekannt"

// LikeState описывает лайки двери глазами пользователя.
type LikeState struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

// Overview собирает реакции для админки.
type Overview struct {
	TotalLikes    int                       `json:"total_likes"`
	LikesByDay    []domain.DayLikes         `json:"likes_by_day"`
	TotalComments int                       `json:"total_comments"`
	Comments      []domain.AnnotatedComment `json:"comments"`
}

// Service управляет лайками и перепиской по дверям.
type Service struct {
	likes     domain.LikeRepo
	comments  domain.CommentRepo
	profiles  domain.ProfileRepo
	events    domain.EventPublisher
	totalDays int
	log       zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис реакций.
func NewService(likes domain.LikeRepo, comments domain.CommentRepo, profiles domain.ProfileRepo, events domain.EventPublisher, totalDays int, log zerolog.Logger) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{likes: likes, comments: comments, profiles: profiles, events: events, totalDays: totalDays, log: log, now: time.Now}
}

// LikeState возвращает количество лайков и отметку пользователя.
func (s *Service) LikeState(ctx context.Context, session domain.Session, day int) (LikeState, error) {
	if err := s.checkDay(day); err != nil {
		return LikeState{}, err
	}
	return s.likeState(ctx, session.UserID, day)
}

// ToggleLike переключает лайк: снимает поставленный и ставит отсутствующий.
func (s *Service) ToggleLike(ctx context.Context, session domain.Session, day int) (LikeState, error) {
	if err := s.checkDay(day); err != nil {
		return LikeState{}, err
	}
	liked, err := s.likes.HasLiked(ctx, session.UserID, day)
	if err != nil {
		return LikeState{}, fmt.Errorf("проверка лайка: %w", err)
	}
	if liked {
		if _, err := s.likes.DeleteLike(ctx, session.UserID, day); err != nil {
			return LikeState{}, fmt.Errorf("удаление лайка: %w", err)
		}
	} else {
		if _, err := s.likes.InsertLike(ctx, session.UserID, day); err != nil {
			return LikeState{}, fmt.Errorf("сохранение лайка: %w", err)
		}
	}
	return s.likeState(ctx, session.UserID, day)
}

func (s *Service) likeState(ctx context.Context, userID uuid.UUID, day int) (LikeState, error) {
	liked, err := s.likes.HasLiked(ctx, userID, day)
	if err != nil {
		return LikeState{}, fmt.Errorf("проверка лайка: %w", err)
	}
	count, err := s.likes.CountLikes(ctx, day)
	if err != nil {
		return LikeState{}, fmt.Errorf("подсчёт лайков: %w", err)
	}
	return LikeState{Liked: liked, Count: count}, nil
}

// AddComment сохраняет сообщение пользователя к двери.
func (s *Service) AddComment(ctx context.Context, session domain.Session, day int, text string) (domain.Comment, error) {
	if err := s.checkDay(day); err != nil {
		return domain.Comment{}, err
	}
	text, err := cleanText(text)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.comments.CreateComment(ctx, session.UserID, day, text)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("сохранение комментария: %w", err)
	}
	s.publish(ctx, domain.EventCommentCreated, comment, text)
	return comment, nil
}

// ListDayComments возвращает сообщения пользователя к двери, новые первыми.
func (s *Service) ListDayComments(ctx context.Context, session domain.Session, day int) ([]domain.Comment, error) {
	if err := s.checkDay(day); err != nil {
		return nil, err
	}
	userID := session.UserID
	return s.comments.ListComments(ctx, domain.CommentFilter{UserID: &userID, DayNumber: &day, NewestFirst: true})
}

// DeleteComment удаляет комментарий. Удалять может автор или администратор.
func (s *Service) DeleteComment(ctx context.Context, session domain.Session, id uuid.UUID) error {
	comment, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if !session.CanModify(comment.UserID) {
		return domain.ErrForbidden
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("удаление комментария: %w", err)
	}
	return nil
}

// Reply сохраняет ответ администратора; ответ снова становится непрочитанным.
func (s *Service) Reply(ctx context.Context, session domain.Session, id uuid.UUID, text string) (domain.Comment, error) {
	if !session.IsAdmin() {
		return domain.Comment{}, domain.ErrForbidden
	}
	text, err := cleanText(text)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.comments.SetReply(ctx, id, text, s.now().UTC())
	if err != nil {
		return domain.Comment{}, err
	}
	s.publish(ctx, domain.EventCommentReplied, comment, text)
	return comment, nil
}

// Respond сохраняет ответ автора на реплику администратора.
func (s *Service) Respond(ctx context.Context, session domain.Session, id uuid.UUID, text string) (domain.Comment, error) {
	text, err := cleanText(text)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	if comment.UserID != session.UserID {
		return domain.Comment{}, domain.ErrForbidden
	}
	if !comment.HasReply() {
		return domain.Comment{}, fmt.Errorf("%w: отвечать можно только на ответ", domain.ErrValidation)
	}
	updated, err := s.comments.SetUserResponse(ctx, id, text, s.now().UTC())
	if err != nil {
		return domain.Comment{}, err
	}
	s.publish(ctx, domain.EventCommentResponded, updated, text)
	return updated, nil
}

// Messages возвращает переписку пользователя по дням и отмечает все новые ответы
// прочитанными одним пакетом.
func (s *Service) Messages(ctx context.Context, session domain.Session) ([]domain.Comment, error) {
	userID := session.UserID
	list, err := s.comments.ListComments(ctx, domain.CommentFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("получение сообщений: %w", err)
	}
	var unread []uuid.UUID
	for _, c := range list {
		if c.Unread() {
			unread = append(unread, c.ID)
		}
	}
	if len(unread) == 0 {
		return list, nil
	}
	if _, err := s.comments.MarkRead(ctx, unread); err != nil {
		return nil, fmt.Errorf("отметка прочитанных: %w", err)
	}
	for i := range list {
		if list[i].Unread() {
			list[i].IsRead = true
		}
	}
	return list, nil
}

// UnreadCount возвращает количество непрочитанных ответов пользователя.
func (s *Service) UnreadCount(ctx context.Context, session domain.Session) (int, error) {
	return s.comments.CountUnread(ctx, session.UserID)
}

// AdminOverview собирает лайки и комментарии всех пользователей.
func (s *Service) AdminOverview(ctx context.Context, session domain.Session) (Overview, error) {
	if !session.IsAdmin() {
		return Overview{}, domain.ErrForbidden
	}
	likes, err := s.likes.ListLikes(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("получение лайков: %w", err)
	}
	comments, err := s.comments.ListComments(ctx, domain.CommentFilter{NewestFirst: true})
	if err != nil {
		return Overview{}, fmt.Errorf("получение комментариев: %w", err)
	}
	annotated, err := s.annotate(ctx, comments)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		TotalLikes:    len(likes),
		LikesByDay:    AggregateLikes(likes),
		TotalComments: len(comments),
		Comments:      annotated,
	}, nil
}

// annotate подставляет имена авторов одним запросом к профилям.
func (s *Service) annotate(ctx context.Context, comments []domain.Comment) ([]domain.AnnotatedComment, error) {
	seen := make(map[uuid.UUID]struct{}, len(comments))
	ids := make([]uuid.UUID, 0, len(comments))
	for _, c := range comments {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	profiles := map[uuid.UUID]domain.Profile{}
	if len(ids) > 0 {
		var err error
		profiles, err = s.profiles.ProfilesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("получение профилей: %w", err)
		}
	}
	out := make([]domain.AnnotatedComment, 0, len(comments))
	for _, c := range comments {
		name := unknownUsername
		if p, ok := profiles[c.UserID]; ok && p.Username != "" {
			name = p.Username
		}
		out = append(out, domain.AnnotatedComment{Comment: c, Username: name})
	}
	return out, nil
}

// AggregateLikes считает лайки по дням по возрастанию дня.
func AggregateLikes(likes []domain.Like) []domain.DayLikes {
	counts := make(map[int]int)
	for _, l := range likes {
		counts[l.DayNumber]++
	}
	out := make([]domain.DayLikes, 0, len(counts))
	for day, count := range counts {
		out = append(out, domain.DayLikes{DayNumber: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out
}

func (s *Service) checkDay(day int) error {
	if day < 1 || day > s.totalDays {
		return domain.ErrDayOutOfRange
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t domain.EventType, c domain.Comment, text string) {
	userID := c.UserID
	event := domain.NewEvent(t, &userID, c.DayNumber)
	event.Text = text
	event.Metadata = map[string]any{"comment_id": c.ID.String()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(t)).Msg("reactions: не удалось опубликовать событие")
	}
}

func cleanText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: пустой текст", domain.ErrValidation)
	}
	if utf8.RuneCountInString(trimmed) > MaxTextLength {
		return "", fmt.Errorf("%w: текст длиннее %d символов", domain.ErrValidation, MaxTextLength)
	}
	return trimmed, nil
}
