package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SlaConfigRepository reads priority time budgets. Administrative writes
// happen elsewhere; the engine only consumes the active set.
type SlaConfigRepository interface {
	ListActive(ctx context.Context) ([]domain.SlaConfiguration, error)
	GetByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SlaConfiguration, error)
}

type slaConfigRepository struct {
	pool *pgxpool.Pool
}

// NewSlaConfigRepository instantiates repository.
func NewSlaConfigRepository(pool *pgxpool.Pool) SlaConfigRepository {
	return &slaConfigRepository{pool: pool}
}

func (r *slaConfigRepository) ListActive(ctx context.Context) ([]domain.SlaConfiguration, error) {
	const query = `
        SELECT id, priority, response_hours, resolution_hours, risk_threshold_percent,
               description, is_active, created_at, updated_at
        FROM sla_configurations WHERE is_active ORDER BY priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaConfiguration
	for rows.Next() {
		var cfg domain.SlaConfiguration
		if err := rows.Scan(
			&cfg.ID,
			&cfg.Priority,
			&cfg.ResponseHours,
			&cfg.ResolutionHours,
			&cfg.RiskThresholdPercent,
			&cfg.Description,
			&cfg.IsActive,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func (r *slaConfigRepository) GetByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SlaConfiguration, error) {
	const query = `
        SELECT id, priority, response_hours, resolution_hours, risk_threshold_percent,
               description, is_active, created_at, updated_at
        FROM sla_configurations WHERE priority=$1 AND is_active`
	var cfg domain.SlaConfiguration
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&cfg.ID,
		&cfg.Priority,
		&cfg.ResponseHours,
		&cfg.ResolutionHours,
		&cfg.RiskThresholdPercent,
		&cfg.Description,
		&cfg.IsActive,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cfg, nil
}
