package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

// stubServices реализует все сервисы API; поля задают ответы, calls хранит вызовы.
type stubServices struct {
	calls     []string
	err       error
	openErr   error
	list      []domain.CalendarEntry
	uploaded  media.Uploaded
	exportErr error
	archive   string
	updates   chan domain.ProgressRecord
}

func (s *stubServices) record(call string) { s.calls = append(s.calls, call) }

func (s *stubServices) Grid(context.Context, domain.Session) (calendar.Grid, error) {
	s.record("grid")
	return calendar.Grid{Doors: []calendar.Door{{Day: 1, Status: calendar.DoorAvailable}}, CurrentDay: 1}, s.err
}

func (s *stubServices) OpenDoor(_ context.Context, _ domain.Session, day int) (calendar.OpenedDoor, error) {
	s.record(fmt.Sprintf("open:%d", day))
	return calendar.OpenedDoor{}, s.openErr
}

func (s *stubServices) LikeState(context.Context, domain.Session, int) (reactions.LikeState, error) {
	return reactions.LikeState{Count: 3}, s.err
}

func (s *stubServices) ToggleLike(context.Context, domain.Session, int) (reactions.LikeState, error) {
	s.record("toggle")
	return reactions.LikeState{Liked: true, Count: 4}, s.err
}

func (s *stubServices) AddComment(_ context.Context, _ domain.Session, day int, text string) (domain.Comment, error) {
	s.record("comment:" + text)
	return domain.Comment{ID: uuid.New(), DayNumber: day, CommentText: text}, s.err
}

func (s *stubServices) ListDayComments(context.Context, domain.Session, int) ([]domain.Comment, error) {
	return nil, s.err
}

func (s *stubServices) DeleteComment(context.Context, domain.Session, uuid.UUID) error {
	s.record("delete_comment")
	return s.err
}

func (s *stubServices) Reply(_ context.Context, _ domain.Session, _ uuid.UUID, text string) (domain.Comment, error) {
	s.record("reply:" + text)
	return domain.Comment{}, s.err
}

func (s *stubServices) Respond(_ context.Context, _ domain.Session, _ uuid.UUID, text string) (domain.Comment, error) {
	s.record("respond:" + text)
	return domain.Comment{}, s.err
}

func (s *stubServices) Messages(context.Context, domain.Session) ([]domain.Comment, error) {
	return nil, s.err
}

func (s *stubServices) UnreadCount(context.Context, domain.Session) (int, error) {
	return 2, s.err
}

func (s *stubServices) AdminOverview(context.Context, domain.Session) (reactions.Overview, error) {
	return reactions.Overview{}, s.err
}

func (s *stubServices) List(context.Context) ([]domain.CalendarEntry, error) {
	return s.list, s.err
}

func (s *stubServices) Get(context.Context, uuid.UUID) (domain.CalendarEntry, error) {
	return domain.CalendarEntry{}, s.err
}

func (s *stubServices) Create(_ context.Context, in domain.EntryInput) (domain.CalendarEntry, error) {
	s.record(fmt.Sprintf("create:%d", in.DayNumber))
	return domain.CalendarEntry{DayNumber: in.DayNumber, Title: in.Title}, s.err
}

func (s *stubServices) Update(context.Context, uuid.UUID, domain.EntryInput) (domain.CalendarEntry, error) {
	return domain.CalendarEntry{}, s.err
}

func (s *stubServices) Delete(context.Context, uuid.UUID) error {
	return s.err
}

func (s *stubServices) Translate(context.Context, domain.TranslationRequest) (domain.Translation, error) {
	s.record("translate")
	return domain.Translation{TitleEn: "Title", StoryEn: "Story"}, s.err
}

func (s *stubServices) MoveStep(_ context.Context, _ uuid.UUID, dir entries.Direction) ([]domain.CalendarEntry, error) {
	s.record("step:" + string(dir))
	return s.list, s.err
}

func (s *stubServices) Move(_ context.Context, _ uuid.UUID, to int) ([]domain.CalendarEntry, error) {
	s.record(fmt.Sprintf("move:%d", to))
	return s.list, s.err
}

func (s *stubServices) Upload(_ context.Context, day int, filename string, target domain.MediaKind, body io.Reader) (media.Uploaded, error) {
	data, _ := io.ReadAll(body)
	s.record(fmt.Sprintf("upload:%d:%s:%s:%d", day, filename, target, len(data)))
	return s.uploaded, s.err
}

func (s *stubServices) Prepare(context.Context) (string, error) {
	if s.exportErr != nil {
		return "", s.exportErr
	}
	return "advent-calendar-export-2025-12-01.zip", nil
}

func (s *stubServices) Build(_ context.Context, w io.Writer) (export.Manifest, error) {
	_, err := io.WriteString(w, s.archive)
	return export.Manifest{TotalEntries: 1}, err
}

func (s *stubServices) Run(context.Context, enrichment.AudioInput) (enrichment.Result, error) {
	s.record("run")
	return enrichment.Result{TranscribedText: "roh", RefinedText: "fein"}, s.err
}

func (s *stubServices) Refine(_ context.Context, t domain.Transcript) (domain.RefinedText, error) {
	s.record("refine:" + t.Text)
	return domain.RefinedText{Text: "fein"}, s.err
}

func (s *stubServices) Progress(context.Context, domain.Session) (dashboard.Summary, error) {
	return dashboard.Summary{TotalDays: 24}, s.err
}

func (s *stubServices) SubscribeProgress(context.Context, uuid.UUID) (<-chan domain.ProgressRecord, func(), error) {
	return s.updates, func() {}, nil
}

// testAuth кладёт в контекст сессию с ролью из заголовка X-Role.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := domain.Session{UserID: uuid.New(), Role: domain.ParseRole(r.Header.Get("X-Role"))}
		next.ServeHTTP(w, r.WithContext(domain.WithSession(r.Context(), session)))
	})
}

func newTestRouter(s *stubServices) http.Handler {
	h := NewHandler(Deps{
		Calendar:   s,
		Reactions:  s,
		Entries:    s,
		Media:      s,
		Export:     s,
		Enrichment: s,
		Dashboard:  s,
		Progress:   s,
	}, zerolog.Nop())
	return h.Routes(testAuth)
}

func do(t *testing.T, router http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpinfra.ErrorResponse {
	t.Helper()
	var resp httpinfra.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %q", rec.Body.String())
	}
	return resp
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("обёртка: %w", domain.ErrValidation), http.StatusBadRequest, "validation"},
		{domain.ErrDayOutOfRange, http.StatusBadRequest, "day_out_of_range"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{domain.ErrDoorLocked, http.StatusForbidden, "door_locked"},
		{domain.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
		{domain.ErrDayTaken, http.StatusConflict, "day_taken"},
		{domain.ErrBusy, http.StatusConflict, "busy"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{domain.ErrCreditsExhausted, http.StatusPaymentRequired, "credits_exhausted"},
		{&enrichment.StageError{Stage: enrichment.StageTranscribe, Err: domain.ErrUpstream}, http.StatusBadGateway, "upstream"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := StatusOf(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("%v: ожидали %d/%s, получили %d/%s", tc.err, tc.status, tc.code, status, code)
		}
	}
}

func TestGridReturnsJSON(t *testing.T) {
	s := &stubServices{}
	rec := do(t, newTestRouter(s), http.MethodGet, "/calendar", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var grid calendar.Grid
	if err := json.Unmarshal(rec.Body.Bytes(), &grid); err != nil || len(grid.Doors) != 1 {
		t.Fatalf("неожиданный ответ %q", rec.Body.String())
	}
}

func TestOpenDoorErrors(t *testing.T) {
	s := &stubServices{openErr: domain.ErrDoorLocked}
	router := newTestRouter(s)

	rec := do(t, router, http.MethodPost, "/doors/5/open", "", "")
	if rec.Code != http.StatusForbidden || decodeError(t, rec).Code != "door_locked" {
		t.Fatalf("ожидали 403 door_locked, получили %d %q", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/doors/abc/open", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
	if len(s.calls) != 1 || s.calls[0] != "open:5" {
		t.Fatalf("неожиданные вызовы %v", s.calls)
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := &stubServices{err: errors.New("pq: connection refused")}
	rec := do(t, newTestRouter(s), http.MethodGet, "/messages/unread-count", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500, получили %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatal("детали внутренней ошибки не должны уходить клиенту")
	}
}

func TestAddCommentValidates(t *testing.T) {
	s := &stubServices{}
	router := newTestRouter(s)

	rec := do(t, router, http.MethodPost, "/doors/3/comments", "", `{"text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 для пустого текста, получили %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/doors/3/comments", "", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 для битого JSON, получили %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/doors/3/comments", "", `{"text":"Schön"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидали 201, получили %d", rec.Code)
	}
	if len(s.calls) != 1 || s.calls[0] != "comment:Schön" {
		t.Fatalf("неожиданные вызовы %v", s.calls)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := &stubServices{}
	router := newTestRouter(s)

	for _, path := range []string{"/admin/entries", "/admin/dashboard", "/admin/reactions", "/admin/export"} {
		rec := do(t, router, http.MethodGet, path, "user", "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: ожидали 403, получили %d", path, rec.Code)
		}
	}
	rec := do(t, router, http.MethodGet, "/admin/entries", "admin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200 для админа, получили %d", rec.Code)
	}
}

func TestCreateEntry(t *testing.T) {
	s := &stubServices{}
	router := newTestRouter(s)

	rec := do(t, router, http.MethodPost, "/admin/entries", "admin", `{"day_number":4,"title":"Tür","story":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 без истории, получили %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/admin/entries", "admin", `{"day_number":4,"title":"Tür","story":"Text"}`)
	if rec.Code != http.StatusCreated || len(s.calls) != 1 || s.calls[0] != "create:4" {
		t.Fatalf("ожидали создание, получили %d %v", rec.Code, s.calls)
	}
	s.err = domain.ErrDayTaken
	rec = do(t, router, http.MethodPost, "/admin/entries", "admin", `{"day_number":4,"title":"Tür","story":"Text"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("ожидали 409, получили %d", rec.Code)
	}
}

func TestMoveEntry(t *testing.T) {
	id := uuid.New()
	s := &stubServices{list: []domain.CalendarEntry{{ID: id, DayNumber: 1}}}
	router := newTestRouter(s)
	path := "/admin/entries/" + id.String() + "/move"

	if rec := do(t, router, http.MethodPost, path, "admin", `{"direction":"up"}`); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, path, "admin", `{"to_index":0}`); rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, path, "admin", `{"direction":"sideways"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 для неизвестного направления, получили %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, path, "admin", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 без параметров, получили %d", rec.Code)
	}
	if len(s.calls) != 2 || s.calls[0] != "step:up" || s.calls[1] != "move:0" {
		t.Fatalf("неожиданные вызовы %v", s.calls)
	}
}

func TestMoveFailureCarriesAuthoritativeOrder(t *testing.T) {
	id := uuid.New()
	s := &stubServices{list: []domain.CalendarEntry{{ID: id, DayNumber: 1}}, err: domain.ErrBusy}
	rec := do(t, newTestRouter(s), http.MethodPost, "/admin/entries/"+id.String()+"/move", "admin", `{"to_index":0}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("ожидали 409, получили %d", rec.Code)
	}
	var resp moveFailure
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp.Code != "busy" || len(resp.Entries) != 1 || resp.Entries[0].ID != id {
		t.Fatalf("неожиданный ответ %+v", resp)
	}
}

func TestUploadMedia(t *testing.T) {
	s := &stubServices{uploaded: media.Uploaded{URL: "https://cdn.example/day-2/a.jpg", Kind: domain.MediaKindImage}}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("day", "2")
	part, _ := mw.CreateFormFile("file", "tanne.jpg")
	_, _ = part.Write([]byte("jpegdata"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Role", "admin")
	rec := httptest.NewRecorder()
	newTestRouter(s).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидали 201, получили %d %q", rec.Code, rec.Body.String())
	}
	if len(s.calls) != 1 || s.calls[0] != "upload:2:tanne.jpg::8" {
		t.Fatalf("неожиданные вызовы %v", s.calls)
	}
}

func TestUploadVoiceTarget(t *testing.T) {
	for _, tc := range []struct {
		target string
		code   int
	}{
		{target: "audio", code: http.StatusCreated},
		{target: "video", code: http.StatusBadRequest},
	} {
		s := &stubServices{uploaded: media.Uploaded{URL: "https://cdn.example/day-3/a.weba", Kind: domain.MediaKindAudio}}
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("day", "3")
		_ = mw.WriteField("target", tc.target)
		part, _ := mw.CreateFormFile("file", "voice.webm")
		_, _ = part.Write([]byte("webm"))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/media", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-Role", "admin")
		rec := httptest.NewRecorder()
		newTestRouter(s).ServeHTTP(rec, req)

		if rec.Code != tc.code {
			t.Fatalf("target=%s: ожидали %d, получили %d %q", tc.target, tc.code, rec.Code, rec.Body.String())
		}
		if tc.code == http.StatusCreated && (len(s.calls) != 1 || s.calls[0] != "upload:3:voice.webm:audio:4") {
			t.Fatalf("неожиданные вызовы %v", s.calls)
		}
	}
}

func TestExportArchive(t *testing.T) {
	s := &stubServices{archive: "PK"}
	rec := do(t, newTestRouter(s), http.MethodGet, "/admin/export", "admin", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("неожиданный тип %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "advent-calendar-export-2025-12-01.zip") {
		t.Fatalf("неожиданный заголовок %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "PK" {
		t.Fatalf("неожиданное тело %q", rec.Body.String())
	}
}

func TestExportNothingToExport(t *testing.T) {
	s := &stubServices{exportErr: domain.ErrNothingToExport}
	rec := do(t, newTestRouter(s), http.MethodGet, "/admin/export", "admin", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "nothing_to_export" {
		t.Fatalf("ожидали 404 nothing_to_export, получили %d %q", rec.Code, rec.Body.String())
	}
}

func TestEnrichmentRoutes(t *testing.T) {
	s := &stubServices{}
	router := newTestRouter(s)

	rec := do(t, router, http.MethodPost, "/admin/transcribe", "admin", `{"audio":"aGFsbG8=","mimeType":"audio/webm"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"refinedText":"fein"`) {
		t.Fatalf("неожиданный ответ %d %q", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodPost, "/admin/transcribe", "admin", `{"mimeType":"audio/webm"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400 без аудио, получили %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/admin/refine", "admin", `{"text":"äh also"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	s.err = domain.ErrRateLimited
	rec = do(t, router, http.MethodPost, "/admin/translate", "admin", `{"title":"Tür","story":"Text"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("ожидали 429, получили %d", rec.Code)
	}
}

func TestProgressStream(t *testing.T) {
	s := &stubServices{updates: make(chan domain.ProgressRecord, 1)}
	s.updates <- domain.ProgressRecord{DayNumber: 7}
	close(s.updates)

	rec := do(t, newTestRouter(s), http.MethodGet, "/progress/stream", "", "")
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("неожиданный тип %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "event: progress\ndata: {\"type\":\"refetch\",\"day_number\":7}") {
		t.Fatalf("неожиданное тело %q", rec.Body.String())
	}
}
