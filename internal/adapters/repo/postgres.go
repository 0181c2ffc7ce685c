package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"advent-calendar/internal/domain"
	"advent-calendar/internal/infra/metrics"
)

const (
	queryTimeout        = 5 * time.Second
	uniqueViolation     = "23505"
	dayNumberConstraint = "calendar_entries_day_number_key"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.EntryRepo          = (*Postgres)(nil)
	_ domain.ProgressRepo       = (*Postgres)(nil)
	_ domain.LikeRepo           = (*Postgres)(nil)
	_ domain.CommentRepo        = (*Postgres)(nil)
	_ domain.ProfileRepo        = (*Postgres)(nil)
	_ domain.AccountRepo        = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr, true
	}
	return nil, false
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, day_number, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, metric.UserID, metric.DayNumber, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// EnsureProfile заводит профиль, если его ещё нет; непустое имя обновляется.
func (p *Postgres) EnsureProfile(ctx context.Context, id uuid.UUID, username string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO profiles (id, username) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
WHERE EXCLUDED.username <> '' AND profiles.username <> EXCLUDED.username
`, id, username)
	metrics.ObserveNetworkRequest("postgres", "profiles_ensure", "profiles", start, err)
	return err
}

// RoleOf возвращает роль пользователя; без записи в user_roles это обычный пользователь.
func (p *Postgres) RoleOf(ctx context.Context, userID uuid.UUID) (domain.UserRole, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var isAdmin bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id=$1 AND role='admin')
`, userID).Scan(&isAdmin)
	metrics.ObserveNetworkRequest("postgres", "user_roles_get", "user_roles", start, err)
	if err != nil {
		return domain.UserRoleUser, err
	}
	if isAdmin {
		return domain.UserRoleAdmin, nil
	}
	return domain.UserRoleUser, nil
}

// ListProfiles возвращает все профили по дате регистрации.
func (p *Postgres) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, username, created_at FROM profiles ORDER BY created_at`)
	metrics.ObserveNetworkRequest("postgres", "profiles_list", "profiles", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProfile)
}

// ProfilesByIDs возвращает профили одним запросом.
func (p *Postgres) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Profile, error) {
	out := make(map[uuid.UUID]domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, username, created_at FROM profiles WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	metrics.ObserveNetworkRequest("postgres", "profiles_by_ids", "profiles", start, err)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, scanProfile)
	if err != nil {
		return nil, err
	}
	for _, pr := range list {
		out[pr.ID] = pr
	}
	return out, nil
}

func scanProfile(row pgx.CollectableRow) (domain.Profile, error) {
	var pr domain.Profile
	err := row.Scan(&pr.ID, &pr.Username, &pr.CreatedAt)
	return pr, err
}
