package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"advent-calendar/internal/domain"
)

// sniffLen байт читается для определения типа; столько же использует mimetype.
const sniffLen = 3072

// Uploaded описывает загруженный медиафайл.
type Uploaded struct {
	URL         string           `json:"url"`
	Path        string           `json:"path"`
	Kind        domain.MediaKind `json:"kind"`
	ContentType string           `json:"content_type"`
}

// Service загружает медиа для записей календаря.
type Service struct {
	storage   domain.MediaStorage
	totalDays int
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(storage domain.MediaStorage, totalDays int, log zerolog.Logger) *Service {
	return &Service{storage: storage, totalDays: totalDays, log: log, now: time.Now}
}

// Upload определяет тип содержимого по первым байтам и сохраняет файл
// под day-<N>/<unixmillis>-<N>.<ext>. target = MediaKindAudio означает, что
// файл пойдёт в audio_url; пустой target принимает любой поддерживаемый тип.
func (s *Service) Upload(ctx context.Context, day int, filename string, target domain.MediaKind, body io.Reader) (Uploaded, error) {
	if day < 1 || day > s.totalDays {
		return Uploaded{}, domain.ErrDayOutOfRange
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Uploaded{}, fmt.Errorf("чтение файла: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return Uploaded{}, fmt.Errorf("%w: пустой файл", domain.ErrValidation)
	}

	mt := mimetype.Detect(head)
	kind, ok := kindOf(mt)
	if !ok {
		return Uploaded{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mt.String())
	}
	ext := extension(mt, filename)
	contentType := mt.String()
	if target == domain.MediaKindAudio {
		if kind == domain.MediaKindImage {
			return Uploaded{}, fmt.Errorf("%w: ожидается аудио, получено %s", domain.ErrUnsupportedMedia, mt.String())
		}
		kind, ext, contentType = asAudio(kind, ext, contentType)
	}
	remote := fmt.Sprintf("day-%d/%d-%d%s", day, s.now().UnixMilli(), day, ext)

	url, err := s.storage.Upload(ctx, remote, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		return Uploaded{}, fmt.Errorf("загрузка %s: %w", remote, err)
	}
	s.log.Info().Int("day", day).Str("path", remote).Str("type", contentType).Msg("media: файл загружен")
	return Uploaded{URL: url, Path: remote, Kind: kind, ContentType: contentType}, nil
}

// audioContainers — видеоконтейнеры, в которых браузер пишет голос
// (MediaRecorder отдаёт webm, Safari отдаёт mp4). По сигнатуре они неотличимы
// от видео, поэтому тип решает назначение загрузки.
var audioContainers = map[string]struct {
	ext         string
	contentType string
}{
	".webm": {ext: ".weba", contentType: "audio/webm"},
	".mp4":  {ext: ".m4a", contentType: "audio/mp4"},
}

func asAudio(kind domain.MediaKind, ext, contentType string) (domain.MediaKind, string, string) {
	if kind != domain.MediaKindVideo {
		return kind, ext, contentType
	}
	if c, ok := audioContainers[ext]; ok {
		return domain.MediaKindAudio, c.ext, c.contentType
	}
	return domain.MediaKindAudio, ext, contentType
}

func kindOf(mt *mimetype.MIME) (domain.MediaKind, bool) {
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return domain.MediaKindImage, true
		case strings.HasPrefix(m.String(), "video/"):
			return domain.MediaKindVideo, true
		case strings.HasPrefix(m.String(), "audio/"), m.Is("application/ogg"):
			return domain.MediaKindAudio, true
		}
	}
	return "", false
}

// extension берёт расширение из определённого типа, иначе из имени файла.
func extension(mt *mimetype.MIME, filename string) string {
	if ext := mt.Extension(); ext != "" {
		return ext
	}
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		return ext
	}
	return ".bin"
}
