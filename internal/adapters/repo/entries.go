package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

const entryColumns = `id, day_number, title, story, title_en, story_en, image_urls, audio_url, created_at, updated_at`

func scanEntry(row pgx.Row) (domain.CalendarEntry, error) {
	var (
		e        domain.CalendarEntry
		titleEn  *string
		storyEn  *string
		audioURL *string
	)
	if err := row.Scan(&e.ID, &e.DayNumber, &e.Title, &e.Story, &titleEn, &storyEn, &e.ImageURLs, &audioURL, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return domain.CalendarEntry{}, err
	}
	if titleEn != nil {
		e.TitleEn = *titleEn
	}
	if storyEn != nil {
		e.StoryEn = *storyEn
	}
	if audioURL != nil {
		e.AudioURL = *audioURL
	}
	if e.ImageURLs == nil {
		e.ImageURLs = []string{}
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func imageURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

func mapEntryErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEntryNotFound
	}
	if pgErr, ok := isUniqueViolation(err); ok && pgErr.ConstraintName == dayNumberConstraint {
		return domain.ErrDayTaken
	}
	return err
}

// ListEntries возвращает все записи по возрастанию дня.
func (p *Postgres) ListEntries(ctx context.Context) ([]domain.CalendarEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+entryColumns+` FROM calendar_entries ORDER BY day_number`)
	metrics.ObserveNetworkRequest("postgres", "entries_list", "calendar_entries", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CalendarEntry, error) {
		return scanEntry(row)
	})
}

// GetEntry возвращает запись по id.
func (p *Postgres) GetEntry(ctx context.Context, id uuid.UUID) (domain.CalendarEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	e, err := scanEntry(p.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM calendar_entries WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "entries_get", "calendar_entries", start, err)
	return e, mapEntryErr(err)
}

// GetEntryByDay возвращает запись дня.
func (p *Postgres) GetEntryByDay(ctx context.Context, day int) (domain.CalendarEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	e, err := scanEntry(p.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM calendar_entries WHERE day_number=$1`, day))
	metrics.ObserveNetworkRequest("postgres", "entries_get_by_day", "calendar_entries", start, err)
	return e, mapEntryErr(err)
}

// CreateEntry добавляет запись; занятый день возвращает ErrDayTaken.
func (p *Postgres) CreateEntry(ctx context.Context, in domain.EntryInput) (domain.CalendarEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	e, err := scanEntry(p.pool.QueryRow(ctx, `
INSERT INTO calendar_entries (day_number, title, story, title_en, story_en, image_urls, audio_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+entryColumns,
		in.DayNumber, in.Title, in.Story, nullable(in.TitleEn), nullable(in.StoryEn), imageURLs(in.ImageURLs), nullable(in.AudioURL)))
	metrics.ObserveNetworkRequest("postgres", "entries_insert", "calendar_entries", start, err)
	return e, mapEntryErr(err)
}

// UpdateEntry перезаписывает содержимое записи.
func (p *Postgres) UpdateEntry(ctx context.Context, id uuid.UUID, in domain.EntryInput) (domain.CalendarEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	e, err := scanEntry(p.pool.QueryRow(ctx, `
UPDATE calendar_entries
SET day_number=$2, title=$3, story=$4, title_en=$5, story_en=$6, image_urls=$7, audio_url=$8, updated_at=now()
WHERE id=$1
RETURNING `+entryColumns,
		id, in.DayNumber, in.Title, in.Story, nullable(in.TitleEn), nullable(in.StoryEn), imageURLs(in.ImageURLs), nullable(in.AudioURL)))
	metrics.ObserveNetworkRequest("postgres", "entries_update", "calendar_entries", start, err)
	return e, mapEntryErr(err)
}

// DeleteEntry удаляет запись.
func (p *Postgres) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM calendar_entries WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "entries_delete", "calendar_entries", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ReassignDays применяет все назначения в одной транзакции. Уникальность дня
// проверяется при коммите, поэтому промежуточные совпадения допустимы.
func (p *Postgres) ReassignDays(ctx context.Context, assignments []domain.DayAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "calendar_entries", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	_, err = tx.Exec(ctx, `SET CONSTRAINTS `+dayNumberConstraint+` DEFERRED`)
	metrics.ObserveNetworkRequest("postgres", "set_constraints_deferred", "calendar_entries", start, err)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, a := range assignments {
		batch.Queue(`UPDATE calendar_entries SET day_number=$2, updated_at=now() WHERE id=$1`, a.EntryID, a.DayNumber)
	}
	start = time.Now()
	br := tx.SendBatch(ctx, batch)
	for _, a := range assignments {
		tag, execErr := br.Exec()
		if execErr != nil {
			err = execErr
			break
		}
		if tag.RowsAffected() == 0 {
			err = fmt.Errorf("%w: %s", domain.ErrEntryNotFound, a.EntryID)
			break
		}
	}
	if closeErr := br.Close(); err == nil {
		err = closeErr
	}
	metrics.ObserveNetworkRequest("postgres", "entries_reassign_days", "calendar_entries", start, err)
	if err != nil {
		return mapEntryErr(err)
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "calendar_entries", start, err)
	return mapEntryErr(err)
}
