package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"advent-calendar/internal/domain"
	openai "advent-calendar/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type transcriptionClient interface {
	CreateTranscription(ctx context.Context, req openai.TranscriptionRequest) (openai.TranscriptionResponse, error)
}

const (
	translateSystemPrompt = "You are a professional translator. Translate the given German text to English. " +
		"Maintain the tone, style, and formatting. Wrap the most important words and phrases in *asterisks* so they appear bold. " +
		"If the German text already has asterisks for bold formatting, preserve them in the translation. Only return the translated text, nothing else."

	translateUserPrompt = `Translate the following German advent calendar entry to English:

Title: %s

Story: %s

Return the translation in this exact format:
TITLE: [translated title]
STORY: [translated story]`

	refineSystemPrompt = "Du bist ein Texteditor, der gesprochene Texte in geschriebene Form umwandelt. " +
		"Behalte den gleichen Inhalt, die gleiche Sprachweise und alle Details bei. " +
		"Verbessere nur die Grammatik und Struktur für geschriebene Form. Fasse nichts zusammen und ändere keine Inhalte. " +
		"Setze die wichtigsten Wörter und Phrasen in *Sternchen*, damit sie fett dargestellt werden."

	refineUserPrompt = "Wandle den folgenden gesprochenen Text in geschriebenen Stil um, ohne den Inhalt zu ändern oder zusammenzufassen:\n\n%s"
)

var (
	titlePattern = regexp.MustCompile(`(?s)TITLE:\s*(.+?)(?:\nSTORY:|$)`)
	storyPattern = regexp.MustCompile(`(?s)STORY:\s*(.+)$`)
)

// Translator переводит записи через Chat Completions.
type Translator struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.Translator = (*Translator)(nil)

// NewTranslator создаёт переводчик.
func NewTranslator(client chatClient, model string, timeout time.Duration) *Translator {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Translator{client: client, model: model, timeout: timeout}
}

// Translate возвращает английские заголовок и историю.
func (t *Translator) Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	content, err := complete(ctx, t.client, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0.3,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: translateSystemPrompt},
			{Role: openai.RoleUser, Content: fmt.Sprintf(translateUserPrompt, req.Title, req.Story)},
		},
	})
	if err != nil {
		return domain.Translation{}, fmt.Errorf("перевод: %w", err)
	}
	out, ok := ParseTranslation(content)
	if !ok {
		return domain.Translation{}, fmt.Errorf("перевод: %w: ответ без TITLE/STORY", domain.ErrUpstream)
	}
	return out, nil
}

// ParseTranslation разбирает ответ формата «TITLE: ... STORY: ...».
func ParseTranslation(content string) (domain.Translation, bool) {
	var out domain.Translation
	if m := titlePattern.FindStringSubmatch(content); m != nil {
		out.TitleEn = strings.TrimSpace(m[1])
	}
	if m := storyPattern.FindStringSubmatch(content); m != nil {
		out.StoryEn = strings.TrimSpace(m[1])
	}
	return out, out.TitleEn != "" && out.StoryEn != ""
}

// Refiner превращает распознанную речь в письменный текст.
type Refiner struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.Refiner = (*Refiner)(nil)

// NewRefiner создаёт редактор текста.
func NewRefiner(client chatClient, model string, timeout time.Duration) *Refiner {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Refiner{client: client, model: model, timeout: timeout}
}

// Refine правит текст, не меняя содержания.
func (r *Refiner) Refine(ctx context.Context, t domain.Transcript) (domain.RefinedText, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	content, err := complete(ctx, r.client, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.2,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: refineSystemPrompt},
			{Role: openai.RoleUser, Content: fmt.Sprintf(refineUserPrompt, t.Text)},
		},
	})
	if err != nil {
		return domain.RefinedText{}, fmt.Errorf("правка текста: %w", err)
	}
	return domain.RefinedText{Text: content}, nil
}

// Transcriber распознаёт немецкую речь через /audio/transcriptions.
type Transcriber struct {
	client   transcriptionClient
	model    string
	language string
	timeout  time.Duration
}

var _ domain.Transcriber = (*Transcriber)(nil)

// NewTranscriber создаёт распознаватель.
func NewTranscriber(client transcriptionClient, model string, timeout time.Duration) *Transcriber {
	if model == "" {
		model = "whisper-1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transcriber{client: client, model: model, language: "de", timeout: timeout}
}

// Transcribe возвращает сырой текст речи.
func (t *Transcriber) Transcribe(ctx context.Context, clip domain.AudioClip) (domain.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	mimeType := clip.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	resp, err := t.client.CreateTranscription(ctx, openai.TranscriptionRequest{
		Model:    t.model,
		Language: t.language,
		FileName: "audio." + AudioExtension(mimeType),
		MIMEType: mimeType,
		Audio:    clip.Data,
	})
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("распознавание: %w", classify(err))
	}
	return domain.Transcript{Text: strings.TrimSpace(resp.Text)}, nil
}

var audioExtensions = map[string]string{
	"audio/ogg":   "ogg",
	"audio/webm":  "webm",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/wav":   "wav",
	"audio/wave":  "wav",
	"audio/flac":  "flac",
	"audio/oga":   "oga",
}

// AudioExtension подбирает расширение файла по MIME-типу записи; по умолчанию webm.
func AudioExtension(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if ext, ok := audioExtensions[base]; ok {
		return ext
	}
	return "webm"
}

func complete(ctx context.Context, client chatClient, req openai.ChatCompletionRequest) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: пустой ответ", domain.ErrUpstream)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: пустой ответ", domain.ErrUpstream)
	}
	return content, nil
}

// classify сводит ошибки API к доменным: 429 и 402 различаются, остальное становится ErrUpstream.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %v", domain.ErrCreditsExhausted, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
}
