package api

import (
	"net/http"

	httpinfra "advent-calendar/internal/infra/http"
)

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *Handler) grid(w http.ResponseWriter, r *http.Request) {
	grid, err := h.deps.Calendar.Grid(r.Context(), h.session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, grid)
}

func (h *Handler) openDoor(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opened, err := h.deps.Calendar.OpenDoor(r.Context(), h.session(r), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, opened)
}

func (h *Handler) likeState(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.deps.Reactions.LikeState(r.Context(), h.session(r), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.deps.Reactions.ToggleLike(r.Context(), h.session(r), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) dayComments(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.deps.Reactions.ListDayComments(r.Context(), h.session(r), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	comment, err := h.deps.Reactions.AddComment(r.Context(), h.session(r), day, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, comment)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Reactions.DeleteComment(r.Context(), h.session(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req textRequest
	if !h.decode(w, r, &req) {
		return
	}
	comment, err := h.deps.Reactions.Respond(r.Context(), h.session(r), id, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, comment)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Reactions.Messages(r.Context(), h.session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.deps.Reactions.UnreadCount(r.Context(), h.session(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}
