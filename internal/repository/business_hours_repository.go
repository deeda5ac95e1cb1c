package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// BusinessHoursRepository reads weekday working windows.
type BusinessHoursRepository interface {
	ListActive(ctx context.Context) ([]domain.BusinessHoursRule, error)
}

type businessHoursRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessHoursRepository instantiates repository.
func NewBusinessHoursRepository(pool *pgxpool.Pool) BusinessHoursRepository {
	return &businessHoursRepository{pool: pool}
}

func (r *businessHoursRepository) ListActive(ctx context.Context) ([]domain.BusinessHoursRule, error) {
	const query = `
        SELECT id, weekday, start_hour, start_min, end_hour, end_min, is_active
        FROM business_hours_rules WHERE is_active ORDER BY weekday`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHoursRule
	for rows.Next() {
		var rule domain.BusinessHoursRule
		var weekday int16
		if err := rows.Scan(
			&rule.ID,
			&weekday,
			&rule.StartHour,
			&rule.StartMin,
			&rule.EndHour,
			&rule.EndMin,
			&rule.IsActive,
		); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		result = append(result, rule)
	}
	return result, rows.Err()
}
