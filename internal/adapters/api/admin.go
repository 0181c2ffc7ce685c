package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"advent-calendar/internal/domain"
	httpinfra "advent-calendar/internal/infra/http"
	"advent-calendar/internal/usecase/enrichment"
	"advent-calendar/internal/usecase/entries"
)

type entryRequest struct {
	DayNumber int      `json:"day_number" validate:"gte=0"`
	Title     string   `json:"title" validate:"required"`
	Story     string   `json:"story" validate:"required"`
	TitleEn   string   `json:"title_en"`
	StoryEn   string   `json:"story_en"`
	ImageURLs []string `json:"image_urls" validate:"omitempty,dive,max=2048"`
	AudioURL  string   `json:"audio_url" validate:"omitempty,url"`
}

func (req entryRequest) input() domain.EntryInput {
	return domain.EntryInput{
		DayNumber: req.DayNumber,
		Title:     req.Title,
		Story:     req.Story,
		TitleEn:   req.TitleEn,
		StoryEn:   req.StoryEn,
		ImageURLs: req.ImageURLs,
		AudioURL:  req.AudioURL,
	}
}

// moveRequest задаёт либо шаг (direction), либо целевую позицию (to_index).
type moveRequest struct {
	Direction string `json:"direction" validate:"omitempty,oneof=up down"`
	ToIndex   *int   `json:"to_index" validate:"omitempty,gte=0"`
}

type translateRequest struct {
	Title string `json:"title" validate:"required"`
	Story string `json:"story" validate:"required"`
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Entries.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.deps.Entries.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.deps.Entries.Create(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req entryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.deps.Entries.Update(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Entries.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// moveEntry всегда отвечает актуальным порядком; при ошибке он приходит вместе с ней,
// чтобы клиент заменил свой оптимистичный список.
func (h *Handler) moveEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	var list []domain.CalendarEntry
	switch {
	case req.Direction != "" && req.ToIndex != nil:
		h.fail(w, r, fmt.Errorf("%w: укажите direction или to_index", domain.ErrValidation))
		return
	case req.Direction != "":
		list, err = h.deps.Entries.MoveStep(r.Context(), id, entries.Direction(req.Direction))
	case req.ToIndex != nil:
		list, err = h.deps.Entries.Move(r.Context(), id, *req.ToIndex)
	default:
		h.fail(w, r, fmt.Errorf("%w: укажите direction или to_index", domain.ErrValidation))
		return
	}
	if err != nil {
		status, code := StatusOf(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("api: перестановка не удалась")
		}
		httpinfra.WriteJSON(w, status, moveFailure{
			ErrorResponse: httpinfra.ErrorResponse{Error: err.Error(), Code: code},
			Entries:       list,
		})
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, list)
}

type moveFailure struct {
	httpinfra.ErrorResponse
	Entries []domain.CalendarEntry `json:"entries,omitempty"`
}

func (h *Handler) uploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		h.fail(w, r, fmt.Errorf("%w: ожидается multipart/form-data", domain.ErrValidation))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	day, err := strconv.Atoi(strings.TrimSpace(r.FormValue("day")))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: поле day должно быть числом", domain.ErrValidation))
		return
	}
	target := domain.MediaKind(strings.TrimSpace(r.FormValue("target")))
	if target != "" && target != domain.MediaKindAudio {
		h.fail(w, r, fmt.Errorf("%w: target может быть только audio", domain.ErrValidation))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: нет файла", domain.ErrValidation))
		return
	}
	defer file.Close()

	uploaded, err := h.deps.Media.Upload(r.Context(), day, header.Filename, target, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, uploaded)
}

func (h *Handler) translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !h.decode(w, r, &req) {
		return
	}
	tr, err := h.deps.Entries.Translate(r.Context(), domain.TranslationRequest{Title: req.Title, Story: req.Story})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, tr)
}

func (h *Handler) transcribe(w http.ResponseWriter, r *http.Request) {
	var req enrichment.AudioInput
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.deps.Enrichment.Run(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) refine(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.deps.Enrichment.Refine(r.Context(), domain.Transcript{Text: req.Text})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) reactionsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.deps.Reactions.AdminOverview(r.Context(), h.session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, overview)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	comment, err := h.deps.Reactions.Reply(r.Context(), h.session(r), id, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, comment)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Dashboard.Progress(r.Context(), h.session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, summary)
}

// exportArchive отдаёт ZIP потоком. Ошибку можно вернуть JSON только до первой
// записанной части архива.
func (h *Handler) exportArchive(w http.ResponseWriter, r *http.Request) {
	name, err := h.deps.Export.Prepare(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Header().Set("Content-Type", "application/zip")
	ww.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	manifest, err := h.deps.Export.Build(r.Context(), ww)
	if err != nil {
		if ww.BytesWritten() == 0 {
			ww.Header().Del("Content-Disposition")
			h.fail(w, r, err)
			return
		}
		h.log.Error().Err(err).Str("file", name).Msg("api: экспорт прерван")
		return
	}
	h.log.Info().
		Str("file", name).
		Int("entries", manifest.TotalEntries).
		Int("failed_media", len(manifest.FailedMedia)).
		Msg("api: экспорт завершён")
}
