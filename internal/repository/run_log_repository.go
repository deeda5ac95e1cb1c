package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// RunLogRepository records batch recomputation passes.
type RunLogRepository interface {
	Create(ctx context.Context, run *domain.RecomputeRun) error
	ListRecent(ctx context.Context, limit int) ([]domain.RecomputeRun, error)
}

type runLogRepository struct {
	pool *pgxpool.Pool
}

// NewRunLogRepository instantiates repository.
func NewRunLogRepository(pool *pgxpool.Pool) RunLogRepository {
	return &runLogRepository{pool: pool}
}

func (r *runLogRepository) Create(ctx context.Context, run *domain.RecomputeRun) error {
	const query = `
        INSERT INTO sla_run_log (id, kind, started_at, duration_ms, processed, at_risk, breached, paused, errored, succeeded, error_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Kind,
		run.StartedAt,
		run.Duration.Milliseconds(),
		run.Processed,
		run.AtRisk,
		run.Breached,
		run.Paused,
		run.Errored,
		run.Succeeded,
		run.ErrMessage,
	)
	return err
}

func (r *runLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.RecomputeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, kind, started_at, duration_ms, processed, at_risk, breached, paused, errored, succeeded, error_message
        FROM sla_run_log ORDER BY started_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RecomputeRun
	for rows.Next() {
		var run domain.RecomputeRun
		var durationMs int64
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&run.StartedAt,
			&durationMs,
			&run.Processed,
			&run.AtRisk,
			&run.Breached,
			&run.Paused,
			&run.Errored,
			&run.Succeeded,
			&run.ErrMessage,
		); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		result = append(result, run)
	}
	return result, rows.Err()
}
