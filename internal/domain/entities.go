package domain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CalendarEntry описывает содержимое одного дня календаря.
type CalendarEntry struct {
	ID        uuid.UUID `json:"id"`
	DayNumber int       `json:"day_number"`
	Title     string    `json:"title"`
	Story     string    `json:"story"`
	TitleEn   string    `json:"title_en,omitempty"`
	StoryEn   string    `json:"story_en,omitempty"`
	ImageURLs []string  `json:"image_urls"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEnglish сообщает, заполнена ли английская версия.
func (e CalendarEntry) HasEnglish() bool {
	return strings.TrimSpace(e.TitleEn) != "" || strings.TrimSpace(e.StoryEn) != ""
}

// MediaCounts возвращает количество картинок и видео среди ImageURLs.
func (e CalendarEntry) MediaCounts() (images, videos int) {
	for _, u := range e.ImageURLs {
		if MediaKindFromURL(u) == MediaKindVideo {
			videos++
			continue
		}
		images++
	}
	return images, videos
}

// EntryInput содержит поля, которые администратор задаёт при создании и редактировании.
type EntryInput struct {
	DayNumber int
	Title     string
	Story     string
	TitleEn   string
	StoryEn   string
	ImageURLs []string
	AudioURL  string
}

// ProgressRecord отмечает, что пользователь открыл дверь.
type ProgressRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	DayNumber int       `json:"day_number"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Like — отметка «нравится» пользователя для дня.
type Like struct {
	UserID    uuid.UUID `json:"user_id"`
	DayNumber int       `json:"day_number"`
	CreatedAt time.Time `json:"created_at"`
}

// DayLikes хранит число лайков одного дня.
type DayLikes struct {
	DayNumber int `json:"day_number"`
	Count     int `json:"count"`
}

// Comment — сообщение пользователя к двери с необязательным ответом администратора.
type Comment struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	DayNumber      int        `json:"day_number"`
	CommentText    string     `json:"comment_text"`
	CreatedAt      time.Time  `json:"created_at"`
	ReplyText      *string    `json:"reply_text"`
	RepliedAt      *time.Time `json:"replied_at"`
	UserResponse   *string    `json:"user_response"`
	UserResponseAt *time.Time `json:"user_response_at"`
	IsRead         bool       `json:"is_read"`
}

// HasReply сообщает, ответил ли администратор.
func (c Comment) HasReply() bool {
	return c.ReplyText != nil && strings.TrimSpace(*c.ReplyText) != ""
}

// Unread сообщает, что ответ есть, но пользователь его ещё не видел.
func (c Comment) Unread() bool {
	return c.HasReply() && !c.IsRead
}

// AnnotatedComment — комментарий с отображаемым именем автора.
type AnnotatedComment struct {
	Comment
	Username string `json:"username"`
}

// Profile описывает публичный профиль пользователя.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaKind различает типы медиа в карусели.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mov": {}, ".m4v": {}, ".ogv": {}, ".avi": {},
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".weba": {}, ".wav": {}, ".ogg": {}, ".oga": {}, ".flac": {}, ".aac": {},
}

// MediaKindFromURL определяет тип медиа по расширению последнего сегмента URL.
// Всё, что не распознано как видео или аудио, считается изображением.
// .webm всегда видео: голосовые записи сохраняются с расширением .weba.
func MediaKindFromURL(rawURL string) MediaKind {
	clean := rawURL
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	ext := strings.ToLower(path.Ext(clean))
	if _, ok := videoExtensions[ext]; ok {
		return MediaKindVideo
	}
	if _, ok := audioExtensions[ext]; ok {
		return MediaKindAudio
	}
	return MediaKindImage
}
