package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// HolidayRepository stores the holiday calendar. Insertion is idempotent on
// date so regenerating a year never duplicates entries.
type HolidayRepository interface {
	ListActiveDates(ctx context.Context, year int) ([]time.Time, error)
	ListByYear(ctx context.Context, year int) ([]domain.Holiday, error)
	InsertMissing(ctx context.Context, holidays []domain.Holiday) (inserted int, err error)
}

type holidayRepository struct {
	pool *pgxpool.Pool
}

// NewHolidayRepository instantiates repository.
func NewHolidayRepository(pool *pgxpool.Pool) HolidayRepository {
	return &holidayRepository{pool: pool}
}

func (r *holidayRepository) ListActiveDates(ctx context.Context, year int) ([]time.Time, error) {
	const query = `
        SELECT holiday_date FROM holidays
        WHERE is_active AND EXTRACT(YEAR FROM holiday_date)=$1
        ORDER BY holiday_date`
	rows, err := r.pool.Query(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		result = append(result, date)
	}
	return result, rows.Err()
}

func (r *holidayRepository) ListByYear(ctx context.Context, year int) ([]domain.Holiday, error) {
	const query = `
        SELECT id, holiday_date, name, movable, is_active, created_at
        FROM holidays WHERE EXTRACT(YEAR FROM holiday_date)=$1
        ORDER BY holiday_date`
	rows, err := r.pool.Query(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var holiday domain.Holiday
		if err := rows.Scan(
			&holiday.ID,
			&holiday.Date,
			&holiday.Name,
			&holiday.Movable,
			&holiday.IsActive,
			&holiday.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, holiday)
	}
	return result, rows.Err()
}

func (r *holidayRepository) InsertMissing(ctx context.Context, holidays []domain.Holiday) (int, error) {
	const query = `
        INSERT INTO holidays (holiday_date, name, movable, is_active)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (holiday_date) DO NOTHING`
	inserted := 0
	for _, holiday := range holidays {
		cmd, err := r.pool.Exec(ctx, query,
			holiday.Date,
			holiday.Name,
			holiday.Movable,
			holiday.IsActive,
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(cmd.RowsAffected())
	}
	return inserted, nil
}
