package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// DayAssignment задаёт новый номер дня для записи.
type DayAssignment struct {
	EntryID   uuid.UUID
	DayNumber int
}

// EntryRepo хранит записи календаря.
type EntryRepo interface {
	ListEntries(ctx context.Context) ([]CalendarEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (CalendarEntry, error)
	GetEntryByDay(ctx context.Context, day int) (CalendarEntry, error)
	CreateEntry(ctx context.Context, in EntryInput) (CalendarEntry, error)
	UpdateEntry(ctx context.Context, id uuid.UUID, in EntryInput) (CalendarEntry, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	// ReassignDays атомарно применяет все назначения: либо все, либо ни одного.
	ReassignDays(ctx context.Context, assignments []DayAssignment) error
}

// ProgressRepo хранит открытые пользователями двери.
type ProgressRepo interface {
	// InsertProgress возвращает false без ошибки, если запись уже была.
	InsertProgress(ctx context.Context, userID uuid.UUID, day int) (bool, error)
	ListProgress(ctx context.Context, userID uuid.UUID) ([]ProgressRecord, error)
	ListAllProgress(ctx context.Context) ([]ProgressRecord, error)
}

// LikeRepo хранит лайки.
type LikeRepo interface {
	InsertLike(ctx context.Context, userID uuid.UUID, day int) (bool, error)
	DeleteLike(ctx context.Context, userID uuid.UUID, day int) (bool, error)
	HasLiked(ctx context.Context, userID uuid.UUID, day int) (bool, error)
	CountLikes(ctx context.Context, day int) (int, error)
	ListLikes(ctx context.Context) ([]Like, error)
}

// CommentFilter ограничивает выборку комментариев.
type CommentFilter struct {
	UserID    *uuid.UUID
	DayNumber *int
	// NewestFirst сортирует по времени создания по убыванию; иначе по дню и времени по возрастанию.
	NewestFirst bool
}

// CommentRepo хранит комментарии и ответы.
type CommentRepo interface {
	CreateComment(ctx context.Context, userID uuid.UUID, day int, text string) (Comment, error)
	GetComment(ctx context.Context, id uuid.UUID) (Comment, error)
	SetReply(ctx context.Context, id uuid.UUID, text string, at time.Time) (Comment, error)
	SetUserResponse(ctx context.Context, id uuid.UUID, text string, at time.Time) (Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
	ListComments(ctx context.Context, filter CommentFilter) ([]Comment, error)
	// MarkRead отмечает прочитанными все перечисленные комментарии одним запросом.
	MarkRead(ctx context.Context, ids []uuid.UUID) (int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// ProfileRepo читает профили пользователей.
type ProfileRepo interface {
	ListProfiles(ctx context.Context) ([]Profile, error)
	ProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
}

// AccountRepo заводит профиль при первом входе и отдаёт роль пользователя.
type AccountRepo interface {
	EnsureProfile(ctx context.Context, id uuid.UUID, username string) error
	RoleOf(ctx context.Context, userID uuid.UUID) (UserRole, error)
}

// MediaStorage хранит бинарные файлы и отдаёт публичные ссылки.
type MediaStorage interface {
	Upload(ctx context.Context, remotePath string, body io.Reader) (string, error)
	Download(ctx context.Context, publicURL string) (io.ReadCloser, error)
}

// Locker выдаёт кратковременные распределённые блокировки.
type Locker interface {
	// TryLock возвращает ErrBusy, если ключ уже захвачен.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ProgressNotifier рассылает подсказки об обновлении прогресса.
type ProgressNotifier interface {
	NotifyProgress(ctx context.Context, rec ProgressRecord) error
}

// ProgressSubscriber подписывает клиента на подсказки своего прогресса.
type ProgressSubscriber interface {
	SubscribeProgress(ctx context.Context, userID uuid.UUID) (<-chan ProgressRecord, func(), error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// TranslationRequest содержит текст на основном языке.
type TranslationRequest struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

// Translation — результат перевода на английский.
type Translation struct {
	TitleEn string `json:"title_en"`
	StoryEn string `json:"story_en"`
}

// Translator переводит запись на английский.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (Translation, error)
}

// AudioClip содержит аудио для распознавания.
type AudioClip struct {
	Data     []byte
	MIMEType string
}

// Transcript — сырой результат распознавания речи.
type Transcript struct {
	Text string `json:"transcribedText"`
}

// RefinedText — текст после литературной правки.
type RefinedText struct {
	Text string `json:"refinedText"`
}

// Transcriber переводит речь в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip) (Transcript, error)
}

// Refiner превращает устную речь в письменный текст.
type Refiner interface {
	Refine(ctx context.Context, t Transcript) (RefinedText, error)
}
