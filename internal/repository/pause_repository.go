package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// PauseRepository persists pause intervals. The partial unique index on
// (ticket_id) WHERE ended_at IS NULL backs the single-open-pause invariant
// even across processes.
type PauseRepository interface {
	Create(ctx context.Context, pause *domain.PauseInterval) error
	GetOpenByTicket(ctx context.Context, ticketID string) (*domain.PauseInterval, error)
	CloseOpen(ctx context.Context, ticketID string, endedAt time.Time) (*domain.PauseInterval, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.PauseInterval, error)
}

type pauseRepository struct {
	pool *pgxpool.Pool
}

// NewPauseRepository instantiates repository.
func NewPauseRepository(pool *pgxpool.Pool) PauseRepository {
	return &pauseRepository{pool: pool}
}

func (r *pauseRepository) Create(ctx context.Context, pause *domain.PauseInterval) error {
	const query = `
        INSERT INTO sla_pauses (ticket_id, started_at, ended_at, trigger, causing_status, reason)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		pause.TicketID,
		pause.StartedAt,
		pause.EndedAt,
		pause.Trigger,
		pause.CausingStatus,
		pause.Reason,
	).Scan(&pause.ID, &pause.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.NewConflict("ticket already has an open pause", map[string]any{
				"ticket_id": pause.TicketID,
			})
		}
		return err
	}
	return nil
}

func (r *pauseRepository) GetOpenByTicket(ctx context.Context, ticketID string) (*domain.PauseInterval, error) {
	const query = `
        SELECT id, ticket_id, started_at, ended_at, trigger, causing_status, reason, created_at
        FROM sla_pauses WHERE ticket_id=$1 AND ended_at IS NULL`
	var pause domain.PauseInterval
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&pause.ID,
		&pause.TicketID,
		&pause.StartedAt,
		&pause.EndedAt,
		&pause.Trigger,
		&pause.CausingStatus,
		&pause.Reason,
		&pause.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &pause, nil
}

func (r *pauseRepository) CloseOpen(ctx context.Context, ticketID string, endedAt time.Time) (*domain.PauseInterval, error) {
	const query = `
        UPDATE sla_pauses SET ended_at=$1
        WHERE ticket_id=$2 AND ended_at IS NULL
        RETURNING id, ticket_id, started_at, ended_at, trigger, causing_status, reason, created_at`
	var pause domain.PauseInterval
	err := r.pool.QueryRow(ctx, query, endedAt, ticketID).Scan(
		&pause.ID,
		&pause.TicketID,
		&pause.StartedAt,
		&pause.EndedAt,
		&pause.Trigger,
		&pause.CausingStatus,
		&pause.Reason,
		&pause.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("open pause", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return &pause, nil
}

func (r *pauseRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.PauseInterval, error) {
	const query = `
        SELECT id, ticket_id, started_at, ended_at, trigger, causing_status, reason, created_at
        FROM sla_pauses WHERE ticket_id=$1 ORDER BY started_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PauseInterval
	for rows.Next() {
		var pause domain.PauseInterval
		if err := rows.Scan(
			&pause.ID,
			&pause.TicketID,
			&pause.StartedAt,
			&pause.EndedAt,
			&pause.Trigger,
			&pause.CausingStatus,
			&pause.Reason,
			&pause.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, pause)
	}
	return result, rows.Err()
}
