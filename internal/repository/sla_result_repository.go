package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SlaResultRepository persists per-ticket results so database consumers see
// the same snapshot the cache serves.
type SlaResultRepository interface {
	UpsertMany(ctx context.Context, results []domain.SlaResult) error
}

type slaResultRepository struct {
	pool *pgxpool.Pool
}

// NewSlaResultRepository instantiates repository.
func NewSlaResultRepository(pool *pgxpool.Pool) SlaResultRepository {
	return &slaResultRepository{pool: pool}
}

func (r *slaResultRepository) UpsertMany(ctx context.Context, results []domain.SlaResult) error {
	const query = `
        INSERT INTO sla_results (
            ticket_id, priority,
            response_budget_hours, response_elapsed_hours, response_paused_hours,
            response_percent_consumed, response_state,
            resolution_budget_hours, resolution_elapsed_hours, resolution_paused_hours,
            resolution_percent_consumed, resolution_state,
            currently_paused, computed_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (ticket_id) DO UPDATE SET
            priority=EXCLUDED.priority,
            response_budget_hours=EXCLUDED.response_budget_hours,
            response_elapsed_hours=EXCLUDED.response_elapsed_hours,
            response_paused_hours=EXCLUDED.response_paused_hours,
            response_percent_consumed=EXCLUDED.response_percent_consumed,
            response_state=EXCLUDED.response_state,
            resolution_budget_hours=EXCLUDED.resolution_budget_hours,
            resolution_elapsed_hours=EXCLUDED.resolution_elapsed_hours,
            resolution_paused_hours=EXCLUDED.resolution_paused_hours,
            resolution_percent_consumed=EXCLUDED.resolution_percent_consumed,
            resolution_state=EXCLUDED.resolution_state,
            currently_paused=EXCLUDED.currently_paused,
            computed_at=EXCLUDED.computed_at`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := range results {
		res := &results[i]
		if _, err := tx.Exec(ctx, query,
			res.TicketID,
			res.Priority,
			res.ResponseBudgetHours,
			res.ResponseElapsedHours,
			res.ResponsePausedHours,
			res.ResponsePercentConsumed,
			res.ResponseState,
			res.ResolutionBudgetHours,
			res.ResolutionElapsedHours,
			res.ResolutionPausedHours,
			res.ResolutionPercentConsumed,
			res.ResolutionState,
			res.CurrentlyPaused,
			res.ComputedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
