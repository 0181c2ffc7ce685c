package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"advent-calendar/internal/domain"
	openai "advent-calendar/internal/infra/openai"
)

type fakeChat struct {
	content string
	err     error
	last    openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: f.content}}}}, nil
}

type fakeTranscription struct {
	last openai.TranscriptionRequest
	err  error
}

func (f *fakeTranscription) CreateTranscription(_ context.Context, req openai.TranscriptionRequest) (openai.TranscriptionResponse, error) {
	f.last = req
	return openai.TranscriptionResponse{Text: " Hallo Welt "}, f.err
}

func TestTranslateParsesMarkers(t *testing.T) {
	chat := &fakeChat{content: "TITLE: The *first* door\nSTORY: Once upon a time\nthere was snow."}
	tr := NewTranslator(chat, "", time.Second)

	out, err := tr.Translate(context.Background(), domain.TranslationRequest{Title: "Die erste Tür", Story: "Es war einmal"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out.TitleEn != "The *first* door" || out.StoryEn != "Once upon a time\nthere was snow." {
		t.Fatalf("неожиданный перевод: %+v", out)
	}
	if !strings.Contains(chat.last.Messages[1].Content, "Die erste Tür") {
		t.Fatal("исходный текст должен попасть в запрос")
	}
}

func TestTranslateRejectsUnparsedOutput(t *testing.T) {
	tr := NewTranslator(&fakeChat{content: "Sorry, I cannot help"}, "", time.Second)
	_, err := tr.Translate(context.Background(), domain.TranslationRequest{Title: "a", Story: "b"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("ответ без маркеров не должен давать пустые поля, получили %v", err)
	}
}

func TestClassifyStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusPaymentRequired, domain.ErrCreditsExhausted},
		{http.StatusInternalServerError, domain.ErrUpstream},
	}
	for _, tc := range cases {
		tr := NewTranslator(&fakeChat{err: &openai.APIError{StatusCode: tc.status}}, "", time.Second)
		_, err := tr.Translate(context.Background(), domain.TranslationRequest{Title: "a", Story: "b"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("статус %d: ожидали %v, получили %v", tc.status, tc.want, err)
		}
	}
}

func TestRefineEmptyIsUpstreamError(t *testing.T) {
	r := NewRefiner(&fakeChat{content: "   "}, "", time.Second)
	if _, err := r.Refine(context.Background(), domain.Transcript{Text: "äh"}); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("ожидали ErrUpstream, получили %v", err)
	}
}

func TestTranscribeUsesGermanAndExtension(t *testing.T) {
	client := &fakeTranscription{}
	tr := NewTranscriber(client, "", time.Second)

	out, err := tr.Transcribe(context.Background(), domain.AudioClip{Data: []byte("x"), MIMEType: "audio/mp4"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out.Text != "Hallo Welt" {
		t.Fatalf("неожиданный текст %q", out.Text)
	}
	if client.last.Language != "de" || client.last.FileName != "audio.m4a" || client.last.Model != "whisper-1" {
		t.Fatalf("неожиданный запрос: %+v", client.last)
	}
}

func TestAudioExtension(t *testing.T) {
	cases := map[string]string{
		"audio/ogg":              "ogg",
		"audio/webm;codecs=opus": "webm",
		"audio/mpeg":             "mp3",
		"audio/x-m4a":            "m4a",
		"audio/wave":             "wav",
		"audio/flac":             "flac",
		"audio/oga":              "oga",
		"":                       "webm",
		"video/quicktime":        "webm",
	}
	for in, want := range cases {
		if got := AudioExtension(in); got != want {
			t.Fatalf("AudioExtension(%q) = %q, ожидали %q", in, got, want)
		}
	}
}
