package api

import (
	"errors"
	"net/http"

	"advent-calendar/internal/domain"
	httpinfra "advent-calendar/internal/infra/http"
)

type errorClass struct {
	target error
	status int
	code   string
}

var errorClasses = []errorClass{
	{domain.ErrDayOutOfRange, http.StatusBadRequest, "day_out_of_range"},
	{domain.ErrUnsupportedMedia, http.StatusBadRequest, "unsupported_media"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
	{httpinfra.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrDoorLocked, http.StatusForbidden, "door_locked"},
	{domain.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
	{domain.ErrCommentNotFound, http.StatusNotFound, "comment_not_found"},
	{domain.ErrNothingToExport, http.StatusNotFound, "nothing_to_export"},
	{domain.ErrDayTaken, http.StatusConflict, "day_taken"},
	{domain.ErrBusy, http.StatusConflict, "busy"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrCreditsExhausted, http.StatusPaymentRequired, "credits_exhausted"},
	{domain.ErrUpstream, http.StatusBadGateway, "upstream"},
}

// StatusOf сопоставляет ошибку сервиса с HTTP статусом и кодом ответа.
func StatusOf(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("api: необработанная ошибка")
		msg = "внутренняя ошибка"
	}
	httpinfra.WriteError(w, status, code, msg)
}
