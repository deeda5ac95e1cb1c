package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// TicketRepository reads ticket records owned by the ticketing subsystem.
// This service never writes tickets.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListForRecompute returns active tickets plus tickets completed within
	// the recently-closed horizon, bounded below by the accounting cutoff.
	ListForRecompute(ctx context.Context, accountingStart time.Time, closedSince time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, external_key, status, priority, opened_at, first_response_at, completed_at
        FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Status,
		&ticket.Priority,
		&ticket.OpenedAt,
		&ticket.FirstResponseAt,
		&ticket.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListForRecompute(ctx context.Context, accountingStart, closedSince time.Time) ([]domain.Ticket, error) {
	const query = `
        SELECT id, external_key, status, priority, opened_at, first_response_at, completed_at
        FROM tickets
        WHERE deleted_at IS NULL
          AND opened_at >= $1
          AND (
              status NOT IN ('RESOLVED','CLOSED','CANCELLED')
              OR completed_at >= $2
          )
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, accountingStart, closedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalKey,
			&ticket.Status,
			&ticket.Priority,
			&ticket.OpenedAt,
			&ticket.FirstResponseAt,
			&ticket.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
