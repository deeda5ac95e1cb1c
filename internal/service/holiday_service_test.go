package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// memHolidayRepo is idempotent on date, like the Postgres repository.
type memHolidayRepo struct {
	byDate map[string]domain.Holiday
}

func newMemHolidayRepo() *memHolidayRepo {
	return &memHolidayRepo{byDate: make(map[string]domain.Holiday)}
}

func (m *memHolidayRepo) ListActiveDates(ctx context.Context, year int) ([]time.Time, error) {
	var out []time.Time
	for _, h := range m.byDate {
		if h.Date.Year() == year && h.IsActive {
			out = append(out, h.Date)
		}
	}
	return out, nil
}

func (m *memHolidayRepo) ListByYear(ctx context.Context, year int) ([]domain.Holiday, error) {
	var out []domain.Holiday
	for _, h := range m.byDate {
		if h.Date.Year() == year {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memHolidayRepo) InsertMissing(ctx context.Context, holidays []domain.Holiday) (int, error) {
	inserted := 0
	for _, h := range holidays {
		key := h.Date.Format("2006-01-02")
		if _, ok := m.byDate[key]; ok {
			continue
		}
		m.byDate[key] = h
		inserted++
	}
	return inserted, nil
}

func TestGenerateYearIdempotent(t *testing.T) {
	repo := newMemHolidayRepo()
	cal := sla.NewCalendar(fixedRules{}, repo, time.UTC, zap.NewNop())
	svc := NewHolidayService(repo, cal, zap.NewNop())
	ctx := context.Background()

	inserted, err := svc.GenerateYear(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, 16, inserted)

	inserted, err = svc.GenerateYear(ctx, 2025)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	holidays, err := svc.ListYear(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, holidays, 16)
}

func TestGenerateYearValidatesRange(t *testing.T) {
	repo := newMemHolidayRepo()
	cal := sla.NewCalendar(fixedRules{}, repo, time.UTC, zap.NewNop())
	svc := NewHolidayService(repo, cal, zap.NewNop())

	for _, year := range []int{1500, 1582, 4100} {
		_, err := svc.GenerateYear(context.Background(), year)
		require.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"), "year %d", year)
	}
}

func TestGenerateYearInvalidatesCalendar(t *testing.T) {
	repo := newMemHolidayRepo()
	cal := sla.NewCalendar(fixedRules{}, repo, time.UTC, zap.NewNop())
	svc := NewHolidayService(repo, cal, zap.NewNop())
	ctx := context.Background()

	// prime the calendar cache for 2025: Corpus Christi's date still counts
	// as a business day
	corpusChristi := at(2025, time.June, 19, 12, 0)
	busy, err := cal.IsBusinessInstant(ctx, corpusChristi)
	require.NoError(t, err)
	require.True(t, busy)

	_, err = svc.GenerateYear(ctx, 2025)
	require.NoError(t, err)

	busy, err = cal.IsBusinessInstant(ctx, corpusChristi)
	require.NoError(t, err)
	require.False(t, busy, "generated holiday should void the cached business day")
}
