package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

const (
	lockKey            = "advent:export"
	lockTTL            = time.Minute
	defaultConcurrency = 4
)

// Service собирает ZIP-архив со всем содержимым календаря.
type Service struct {
	entries     domain.EntryRepo
	storage     domain.MediaStorage
	locker      domain.Locker
	concurrency int
	spoolDir    string
	log         zerolog.Logger
	now         func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithConcurrency ограничивает число одновременных загрузок медиа.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSpoolDir задаёт каталог для временных файлов загрузки. Пустая строка
// означает os.TempDir.
func WithSpoolDir(dir string) Option {
	return func(s *Service) { s.spoolDir = dir }
}

// WithLocker включает распределённую блокировку выгрузки.
func WithLocker(l domain.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(entries domain.EntryRepo, storage domain.MediaStorage, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{entries: entries, storage: storage, concurrency: defaultConcurrency, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare проверяет, что выгружать есть что, и возвращает имя архива.
func (s *Service) Prepare(ctx context.Context) (string, error) {
	list, err := s.entries.ListEntries(ctx)
	if err != nil {
		return "", fmt.Errorf("получение записей: %w", err)
	}
	if len(list) == 0 {
		return "", domain.ErrNothingToExport
	}
	return FileName(s.now()), nil
}

// Build пишет архив в w потоком: тексты дней, затем медиа в порядке planMedia,
// manifest.json последним. Ошибки загрузки отдельных файлов не прерывают
// выгрузку: они попадают в лог, метрику и manifest.json.
func (s *Service) Build(ctx context.Context, w io.Writer) (Manifest, error) {
	start := time.Now()
	defer func() { metrics.ExportDuration.Observe(time.Since(start).Seconds()) }()

	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, lockKey, lockTTL)
		if err != nil {
			return Manifest{}, err
		}
		defer release()
	}

	list, err := s.entries.ListEntries(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("получение записей: %w", err)
	}
	if len(list) == 0 {
		return Manifest{}, domain.ErrNothingToExport
	}

	manifest := Manifest{
		ExportedAt:   s.now().UTC(),
		TotalEntries: len(list),
		Entries:      make([]ManifestEntry, 0, len(list)),
		FailedMedia:  []string{},
	}
	for _, e := range list {
		manifest.Entries = append(manifest.Entries, manifestEntry(e))
	}

	zw := zip.NewWriter(w)
	for _, e := range list {
		if err := writeJSON(zw, textPath(e.DayNumber), dayText(e)); err != nil {
			return Manifest{}, err
		}
	}
	if err := flush(zw, w); err != nil {
		return Manifest{}, err
	}

	files := planMedia(list)
	failed, err := s.streamMedia(ctx, zw, w, files)
	if err != nil {
		return Manifest{}, err
	}
	manifest.FailedMedia = append(manifest.FailedMedia, failed...)

	if err := writeJSON(zw, "manifest.json", manifest); err != nil {
		return Manifest{}, err
	}
	if err := zw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("zip: %w", err)
	}

	s.log.Info().
		Int("entries", manifest.TotalEntries).
		Int("media", len(files)).
		Int("failed", len(manifest.FailedMedia)).
		Msg("export: архив собран")
	return manifest, nil
}

// spooled — скачанный во временный файл медиафайл.
type spooled struct {
	file *os.File
	err  error
}

func (sp spooled) discard() {
	if sp.file == nil {
		return
	}
	name := sp.file.Name()
	_ = sp.file.Close()
	_ = os.Remove(name)
}

// streamMedia скачивает файлы параллельно во временные файлы и пишет их в архив
// строго по порядку files. Одновременно на диске лежит не больше s.concurrency
// файлов. Возвращает URL неудачных загрузок.
func (s *Service) streamMedia(ctx context.Context, zw *zip.Writer, w io.Writer, files []mediaFile) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan spooled, len(files))
	for i := range slots {
		slots[i] = make(chan spooled, 1)
	}
	window := make(chan struct{}, s.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i, f := range files {
			i, f := i, f
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			g.Go(func() error {
				slots[i] <- s.spool(gctx, f.url)
				return nil
			})
		}
		return nil
	})

	failed, err := s.drain(ctx, zw, w, files, slots, window)
	cancel()
	_ = g.Wait()
	for _, slot := range slots {
		select {
		case sp := <-slot:
			sp.discard()
		default:
		}
	}
	return failed, err
}

func (s *Service) drain(ctx context.Context, zw *zip.Writer, w io.Writer, files []mediaFile, slots []chan spooled, window chan struct{}) ([]string, error) {
	var failed []string
	for i, f := range files {
		var sp spooled
		select {
		case sp = <-slots[i]:
		case <-ctx.Done():
			return nil, fmt.Errorf("загрузка медиа: %w", ctx.Err())
		}

		if sp.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("загрузка медиа: %w", ctxErr)
			}
			metrics.ExportMediaFailures.Inc()
			s.log.Warn().Err(sp.err).Str("url", f.url).Msg("export: файл пропущен")
			failed = append(failed, f.url)
			<-window
			continue
		}
		err := copyEntry(zw, f.archivePath, sp.file)
		sp.discard()
		if err != nil {
			return nil, err
		}
		if err := flush(zw, w); err != nil {
			return nil, err
		}
		<-window
	}
	return failed, nil
}

// spool скачивает файл во временный файл и перематывает его в начало.
func (s *Service) spool(ctx context.Context, url string) spooled {
	rc, err := s.storage.Download(ctx, url)
	if err != nil {
		return spooled{err: err}
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(s.spoolDir, "advent-export-*")
	if err != nil {
		return spooled{err: fmt.Errorf("временный файл: %w", err)}
	}
	sp := spooled{file: tmp}
	if _, err := io.Copy(tmp, rc); err != nil {
		sp.discard()
		return spooled{err: err}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		sp.discard()
		return spooled{err: err}
	}
	return sp
}

// copyEntry кладёт медиа без сжатия: jpg, mp4 и mp3 уже сжаты.
func copyEntry(zw *zip.Writer, name string, r io.Reader) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	return nil
}

// flush проталкивает уже собранную часть архива клиенту.
func flush(zw *zip.Writer, w io.Writer) error {
	if err := zw.Flush(); err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	enc := json.NewEncoder(fw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	return nil
}
