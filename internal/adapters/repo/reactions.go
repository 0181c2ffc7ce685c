package repo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

// InsertProgress отмечает открытие двери. Повторная вставка не ошибка: возвращается false.
func (p *Postgres) InsertProgress(ctx context.Context, userID uuid.UUID, day int) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO user_progress (user_id, day_number) VALUES ($1, $2)
ON CONFLICT (user_id, day_number) DO NOTHING
`, userID, day)
	metrics.ObserveNetworkRequest("postgres", "progress_insert", "user_progress", start, err)
	if _, dup := isUniqueViolation(err); dup {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListProgress возвращает открытые пользователем двери.
func (p *Postgres) ListProgress(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, day_number, opened_at FROM user_progress WHERE user_id=$1 ORDER BY day_number
`, userID)
	metrics.ObserveNetworkRequest("postgres", "progress_list", "user_progress", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProgress)
}

// ListAllProgress возвращает прогресс всех пользователей одним запросом.
func (p *Postgres) ListAllProgress(ctx context.Context) ([]domain.ProgressRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id, day_number, opened_at FROM user_progress ORDER BY user_id, day_number`)
	metrics.ObserveNetworkRequest("postgres", "progress_list_all", "user_progress", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProgress)
}

func scanProgress(row pgx.CollectableRow) (domain.ProgressRecord, error) {
	var r domain.ProgressRecord
	err := row.Scan(&r.UserID, &r.DayNumber, &r.OpenedAt)
	return r, err
}

// InsertLike ставит лайк; повторный лайк возвращает false.
func (p *Postgres) InsertLike(ctx context.Context, userID uuid.UUID, day int) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO door_likes (user_id, day_number) VALUES ($1, $2)
ON CONFLICT (user_id, day_number) DO NOTHING
`, userID, day)
	metrics.ObserveNetworkRequest("postgres", "likes_insert", "door_likes", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteLike снимает лайк; false, если лайка не было.
func (p *Postgres) DeleteLike(ctx context.Context, userID uuid.UUID, day int) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM door_likes WHERE user_id=$1 AND day_number=$2`, userID, day)
	metrics.ObserveNetworkRequest("postgres", "likes_delete", "door_likes", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasLiked проверяет лайк пользователя.
func (p *Postgres) HasLiked(ctx context.Context, userID uuid.UUID, day int) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var liked bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM door_likes WHERE user_id=$1 AND day_number=$2)
`, userID, day).Scan(&liked)
	metrics.ObserveNetworkRequest("postgres", "likes_exists", "door_likes", start, err)
	return liked, err
}

// CountLikes считает лайки дня.
func (p *Postgres) CountLikes(ctx context.Context, day int) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM door_likes WHERE day_number=$1`, day).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "likes_count", "door_likes", start, err)
	return count, err
}

// ListLikes возвращает все лайки.
func (p *Postgres) ListLikes(ctx context.Context) ([]domain.Like, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id, day_number, created_at FROM door_likes ORDER BY day_number, created_at`)
	metrics.ObserveNetworkRequest("postgres", "likes_list", "door_likes", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Like, error) {
		var l domain.Like
		err := row.Scan(&l.UserID, &l.DayNumber, &l.CreatedAt)
		return l, err
	})
}

const commentColumns = `id, user_id, day_number, comment_text, created_at, reply_text, replied_at, user_response, user_response_at, is_read`

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.UserID, &c.DayNumber, &c.CommentText, &c.CreatedAt, &c.ReplyText, &c.RepliedAt, &c.UserResponse, &c.UserResponseAt, &c.IsRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.ErrCommentNotFound
	}
	return c, err
}

// CreateComment сохраняет комментарий.
func (p *Postgres) CreateComment(ctx context.Context, userID uuid.UUID, day int, text string) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `
INSERT INTO door_comments (user_id, day_number, comment_text) VALUES ($1, $2, $3)
RETURNING `+commentColumns, userID, day, text))
	metrics.ObserveNetworkRequest("postgres", "comments_insert", "door_comments", start, err)
	return c, err
}

// GetComment возвращает комментарий по id.
func (p *Postgres) GetComment(ctx context.Context, id uuid.UUID) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM door_comments WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "comments_get", "door_comments", start, err)
	return c, err
}

// SetReply сохраняет ответ администратора и сбрасывает отметку о прочтении.
func (p *Postgres) SetReply(ctx context.Context, id uuid.UUID, text string, at time.Time) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `
UPDATE door_comments SET reply_text=$2, replied_at=$3, is_read=false WHERE id=$1
RETURNING `+commentColumns, id, text, at))
	metrics.ObserveNetworkRequest("postgres", "comments_reply", "door_comments", start, err)
	return c, err
}

// SetUserResponse сохраняет ответ автора.
func (p *Postgres) SetUserResponse(ctx context.Context, id uuid.UUID, text string, at time.Time) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanComment(p.pool.QueryRow(ctx, `
UPDATE door_comments SET user_response=$2, user_response_at=$3 WHERE id=$1
RETURNING `+commentColumns, id, text, at))
	metrics.ObserveNetworkRequest("postgres", "comments_respond", "door_comments", start, err)
	return c, err
}

// DeleteComment удаляет комментарий.
func (p *Postgres) DeleteComment(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM door_comments WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "comments_delete", "door_comments", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

// ListComments выбирает комментарии по фильтру.
func (p *Postgres) ListComments(ctx context.Context, filter domain.CommentFilter) ([]domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, "user_id=$"+strconv.Itoa(len(args)))
	}
	if filter.DayNumber != nil {
		args = append(args, *filter.DayNumber)
		where = append(where, "day_number=$"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + commentColumns + ` FROM door_comments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.NewestFirst {
		query += ` ORDER BY created_at DESC`
	} else {
		query += ` ORDER BY day_number, created_at`
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "comments_list", "door_comments", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Comment, error) {
		return scanComment(row)
	})
}

// MarkRead отмечает комментарии прочитанными одним запросом.
func (p *Postgres) MarkRead(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE door_comments SET is_read=true WHERE id = ANY($1::uuid[]) AND is_read=false
`, uuidStrings(ids))
	metrics.ObserveNetworkRequest("postgres", "comments_mark_read", "door_comments", start, err)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CountUnread считает непрочитанные ответы пользователя.
func (p *Postgres) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM door_comments
WHERE user_id=$1 AND reply_text IS NOT NULL AND reply_text <> '' AND is_read=false
`, userID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "comments_count_unread", "door_comments", start, err)
	return count, err
}
