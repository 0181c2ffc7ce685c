package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
	httpinfra "advent-calendar/internal/infra/http"
	"advent-calendar/internal/usecase/calendar"
	"advent-calendar/internal/usecase/dashboard"
	"advent-calendar/internal/usecase/enrichment"
	"advent-calendar/internal/usecase/entries"
	"advent-calendar/internal/usecase/export"
	"advent-calendar/internal/usecase/media"
	"advent-calendar/internal/usecase/reactions"
)

const (
	requestTimeout = 90 * time.Second
	maxJSONBody    = 25 << 20
	maxUploadBody  = 200 << 20
	uploadMemory   = 32 << 20
)

// CalendarService строит сетку дверей и открывает их.
type CalendarService interface {
	Grid(ctx context.Context, session domain.Session) (calendar.Grid, error)
	OpenDoor(ctx context.Context, session domain.Session, day int) (calendar.OpenedDoor, error)
}

// ReactionService ведёт лайки и переписку.
type ReactionService interface {
	LikeState(ctx context.Context, session domain.Session, day int) (reactions.LikeState, error)
	ToggleLike(ctx context.Context, session domain.Session, day int) (reactions.LikeState, error)
	AddComment(ctx context.Context, session domain.Session, day int, text string) (domain.Comment, error)
	ListDayComments(ctx context.Context, session domain.Session, day int) ([]domain.Comment, error)
	DeleteComment(ctx context.Context, session domain.Session, id uuid.UUID) error
	Reply(ctx context.Context, session domain.Session, id uuid.UUID, text string) (domain.Comment, error)
	Respond(ctx context.Context, session domain.Session, id uuid.UUID, text string) (domain.Comment, error)
	Messages(ctx context.Context, session domain.Session) ([]domain.Comment, error)
	UnreadCount(ctx context.Context, session domain.Session) (int, error)
	AdminOverview(ctx context.Context, session domain.Session) (reactions.Overview, error)
}

// EntryService редактирует записи календаря.
type EntryService interface {
	List(ctx context.Context) ([]domain.CalendarEntry, error)
	Get(ctx context.Context, id uuid.UUID) (domain.CalendarEntry, error)
	Create(ctx context.Context, in domain.EntryInput) (domain.CalendarEntry, error)
	Update(ctx context.Context, id uuid.UUID, in domain.EntryInput) (domain.CalendarEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error)
	MoveStep(ctx context.Context, id uuid.UUID, dir entries.Direction) ([]domain.CalendarEntry, error)
	Move(ctx context.Context, id uuid.UUID, toIndex int) ([]domain.CalendarEntry, error)
}

// MediaService загружает медиафайлы.
type MediaService interface {
	Upload(ctx context.Context, day int, filename string, target domain.MediaKind, body io.Reader) (media.Uploaded, error)
}

// ExportService собирает архив выгрузки.
type ExportService interface {
	Prepare(ctx context.Context) (string, error)
	Build(ctx context.Context, w io.Writer) (export.Manifest, error)
}

// EnrichmentService распознаёт и правит надиктованный текст.
type EnrichmentService interface {
	Run(ctx context.Context, in enrichment.AudioInput) (enrichment.Result, error)
	Refine(ctx context.Context, t domain.Transcript) (domain.RefinedText, error)
}

// DashboardService считает прогресс пользователей для админки.
type DashboardService interface {
	Progress(ctx context.Context, session domain.Session) (dashboard.Summary, error)
}

// Deps перечисляет сервисы, которые обслуживает API.
type Deps struct {
	Calendar   CalendarService
	Reactions  ReactionService
	Entries    EntryService
	Media      MediaService
	Export     ExportService
	Enrichment EnrichmentService
	Dashboard  DashboardService
	Progress   domain.ProgressSubscriber
}

// Handler обслуживает HTTP API календаря.
type Handler struct {
	deps     Deps
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(deps Deps, log zerolog.Logger) *Handler {
	return &Handler{deps: deps, validate: validator.New(), log: log}
}

// Routes возвращает маршруты /api/v1. auth обязан положить сессию в контекст.
func (h *Handler) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(auth)

	r.Get("/progress/stream", h.progressStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/calendar", h.grid)
		r.Post("/doors/{day}/open", h.openDoor)
		r.Get("/doors/{day}/likes", h.likeState)
		r.Post("/doors/{day}/likes/toggle", h.toggleLike)
		r.Get("/doors/{day}/comments", h.dayComments)
		r.Post("/doors/{day}/comments", h.addComment)
		r.Delete("/comments/{id}", h.deleteComment)
		r.Post("/comments/{id}/response", h.respond)
		r.Get("/messages", h.messages)
		r.Get("/messages/unread-count", h.unreadCount)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(httpinfra.RequireAdmin)
		r.Get("/export", h.exportArchive)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/entries", h.listEntries)
			r.Post("/entries", h.createEntry)
			r.Get("/entries/{id}", h.getEntry)
			r.Put("/entries/{id}", h.updateEntry)
			r.Delete("/entries/{id}", h.deleteEntry)
			r.Post("/entries/{id}/move", h.moveEntry)
			r.Post("/media", h.uploadMedia)
			r.Post("/translate", h.translate)
			r.Post("/transcribe", h.transcribe)
			r.Post("/refine", h.refine)
			r.Get("/reactions", h.reactionsOverview)
			r.Post("/comments/{id}/reply", h.reply)
			r.Delete("/comments/{id}", h.deleteComment)
			r.Get("/dashboard", h.dashboard)
		})
	})
	return r
}

func (h *Handler) session(r *http.Request) domain.Session {
	s, _ := domain.SessionFrom(r.Context())
	return s
}

// decode читает JSON тело и проверяет его тегами validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.fail(w, r, fmt.Errorf("%w: некорректный JSON", domain.ErrValidation))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return false
	}
	return true
}

func dayParam(r *http.Request) (int, error) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		return 0, fmt.Errorf("%w: номер дня должен быть числом", domain.ErrValidation)
	}
	return day, nil
}

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: некорректный id", domain.ErrValidation)
	}
	return id, nil
}
