package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"advent-calendar/internal/domain"
	httpinfra "advent-calendar/internal/infra/http"
)

const streamKeepAlive = 25 * time.Second

type progressHint struct {
	Type      string `json:"type"`
	DayNumber int    `json:"day_number"`
}

// progressStream держит SSE соединение и пересылает подсказки «перечитай прогресс».
func (h *Handler) progressStream(w http.ResponseWriter, r *http.Request) {
	if h.deps.Progress == nil {
		httpinfra.WriteError(w, http.StatusServiceUnavailable, "unavailable", "поток прогресса не настроен")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, errors.New("поток не поддерживается"))
		return
	}
	session := h.session(r)
	updates, cancel, err := h.deps.Progress.SubscribeProgress(r.Context(), session.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if err := writeHint(w, rec); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeHint(w http.ResponseWriter, rec domain.ProgressRecord) error {
	payload, err := json.Marshal(progressHint{Type: "refetch", DayNumber: rec.DayNumber})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
	return err
}
