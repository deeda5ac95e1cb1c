package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// HolidayService generates the yearly holiday calendar and keeps the
// business calendar's cache coherent with administrative writes.
type HolidayService struct {
	holidays repository.HolidayRepository
	calendar *sla.Calendar
	logger   *zap.Logger
}

// NewHolidayService constructs the service.
func NewHolidayService(holidays repository.HolidayRepository, calendar *sla.Calendar, logger *zap.Logger) *HolidayService {
	return &HolidayService{holidays: holidays, calendar: calendar, logger: logger}
}

// GenerateYear inserts the fixed and Easter-derived holidays for one year.
// Regenerating a year is a no-op for dates already present; uniqueness is
// enforced on the date column.
func (s *HolidayService) GenerateYear(ctx context.Context, year int) (inserted int, err error) {
	if year < 1583 || year > 4099 {
		return 0, apperrors.NewValidationError("year outside the Gregorian computus range", map[string]any{
			"year": year,
		})
	}

	set := sla.HolidaysForYear(year, s.calendar.Location())
	inserted, err = s.holidays.InsertMissing(ctx, set)
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		s.calendar.InvalidateHolidayYear(year)
	}
	s.logger.Info("holiday calendar generated",
		zap.Int("year", year),
		zap.Int("generated", len(set)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// ListYear returns the stored holiday calendar for a year.
func (s *HolidayService) ListYear(ctx context.Context, year int) ([]domain.Holiday, error) {
	return s.holidays.ListByYear(ctx, year)
}
