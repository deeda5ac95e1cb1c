package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// memPauseRepo mimics the Postgres repository, including its partial-unique
// conflict and no-rows behavior.
type memPauseRepo struct {
	pauses []domain.PauseInterval
	nextID int
}

func (m *memPauseRepo) Create(ctx context.Context, pause *domain.PauseInterval) error {
	for _, p := range m.pauses {
		if p.TicketID == pause.TicketID && p.EndedAt == nil {
			return apperrors.NewConflict("ticket already has an open pause", nil)
		}
	}
	m.nextID++
	pause.ID = fmt.Sprintf("pause-%d", m.nextID)
	pause.CreatedAt = time.Now()
	m.pauses = append(m.pauses, *pause)
	return nil
}

func (m *memPauseRepo) GetOpenByTicket(ctx context.Context, ticketID string) (*domain.PauseInterval, error) {
	for i := range m.pauses {
		if m.pauses[i].TicketID == ticketID && m.pauses[i].EndedAt == nil {
			pause := m.pauses[i]
			return &pause, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memPauseRepo) CloseOpen(ctx context.Context, ticketID string, endedAt time.Time) (*domain.PauseInterval, error) {
	for i := range m.pauses {
		if m.pauses[i].TicketID == ticketID && m.pauses[i].EndedAt == nil {
			m.pauses[i].EndedAt = &endedAt
			pause := m.pauses[i]
			return &pause, nil
		}
	}
	return nil, apperrors.NewNotFound("open pause", map[string]any{"ticket_id": ticketID})
}

func (m *memPauseRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.PauseInterval, error) {
	var out []domain.PauseInterval
	for _, p := range m.pauses {
		if p.TicketID == ticketID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fixedRules struct{}

func (fixedRules) ListActive(ctx context.Context) ([]domain.BusinessHoursRule, error) {
	return nil, nil // calendar falls back to Mon-Fri 08:00-18:00
}

type noHolidays struct{}

func (noHolidays) ListActiveDates(ctx context.Context, year int) ([]time.Time, error) {
	return nil, nil
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func newPauseFixture(t *testing.T, clock func() time.Time) (*PauseService, *memPauseRepo) {
	t.Helper()
	cal := sla.NewCalendar(fixedRules{}, noHolidays{}, time.UTC, zap.NewNop())
	repo := &memPauseRepo{}
	svc := NewPauseService(PauseDependencies{
		PauseRepo:       repo,
		Engine:          sla.NewEngine(cal),
		PausingStatuses: []string{"PENDING_USER", "IN_REVIEW"},
		Clock:           clock,
		Logger:          zap.NewNop(),
	})
	return svc, repo
}

func TestOpenPauseConflict(t *testing.T) {
	svc, _ := newPauseFixture(t, nil)
	ctx := context.Background()

	first, err := svc.OpenPause(ctx, "t1", domain.PauseTriggerManual, nil, "waiting on customer", at(2025, time.June, 2, 10, 0))
	require.NoError(t, err)
	require.Nil(t, first.EndedAt)

	_, err = svc.OpenPause(ctx, "t1", domain.PauseTriggerManual, nil, "again", at(2025, time.June, 2, 11, 0))
	require.True(t, apperrors.HasCode(err, "CONFLICT"))

	// the first pause is untouched
	open, err := svc.HasOpenPause(ctx, "t1")
	require.NoError(t, err)
	require.True(t, open)
}

func TestClosePauseNotFound(t *testing.T) {
	svc, _ := newPauseFixture(t, nil)

	_, err := svc.ClosePause(context.Background(), "t1", at(2025, time.June, 2, 11, 0))
	require.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestApplyStatusChangeOpensAndCloses(t *testing.T) {
	svc, repo := newPauseFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.ApplyStatusChange(ctx, "t1", domain.TicketStatusPendingUser, at(2025, time.June, 2, 10, 0)))
	open, _ := svc.HasOpenPause(ctx, "t1")
	require.True(t, open)
	require.Equal(t, domain.PauseTriggerStatus, repo.pauses[0].Trigger)
	require.Equal(t, domain.TicketStatusPendingUser, *repo.pauses[0].CausingStatus)

	// repeated pausing status is a no-op, not an error
	require.NoError(t, svc.ApplyStatusChange(ctx, "t1", domain.TicketStatusInReview, at(2025, time.June, 2, 10, 30)))
	require.Len(t, repo.pauses, 1)

	require.NoError(t, svc.ApplyStatusChange(ctx, "t1", domain.TicketStatusInProgress, at(2025, time.June, 2, 11, 0)))
	open, _ = svc.HasOpenPause(ctx, "t1")
	require.False(t, open)

	// closing again is also a no-op
	require.NoError(t, svc.ApplyStatusChange(ctx, "t1", domain.TicketStatusResolved, at(2025, time.June, 2, 12, 0)))
}

func TestPausedBusinessHoursClipsToWindow(t *testing.T) {
	now := at(2025, time.June, 3, 12, 0)
	svc, _ := newPauseFixture(t, func() time.Time { return now })
	ctx := context.Background()

	// closed pause Mon 17:00 - Tue 09:00: 1h Monday + 1h Tuesday business time
	_, err := svc.OpenPause(ctx, "t1", domain.PauseTriggerManual, nil, "r", at(2025, time.June, 2, 17, 0))
	require.NoError(t, err)
	_, err = svc.ClosePause(ctx, "t1", at(2025, time.June, 3, 9, 0))
	require.NoError(t, err)

	// window covering the whole pause
	hours, err := svc.PausedBusinessHours(ctx, "t1", at(2025, time.June, 2, 8, 0), at(2025, time.June, 3, 18, 0))
	require.NoError(t, err)
	require.InDelta(t, 2.0, hours, 1e-9)

	// window ending before the pause finishes clips the overlap
	hours, err = svc.PausedBusinessHours(ctx, "t1", at(2025, time.June, 2, 8, 0), at(2025, time.June, 2, 18, 0))
	require.NoError(t, err)
	require.InDelta(t, 1.0, hours, 1e-9)

	// window entirely before the pause yields zero
	hours, err = svc.PausedBusinessHours(ctx, "t1", at(2025, time.June, 2, 8, 0), at(2025, time.June, 2, 12, 0))
	require.NoError(t, err)
	require.InDelta(t, 0.0, hours, 1e-9)
}

func TestPausedBusinessHoursOpenPauseEndsNow(t *testing.T) {
	now := at(2025, time.June, 2, 17, 0)
	svc, _ := newPauseFixture(t, func() time.Time { return now })
	ctx := context.Background()

	_, err := svc.OpenPause(ctx, "t1", domain.PauseTriggerManual, nil, "r", at(2025, time.June, 2, 16, 0))
	require.NoError(t, err)

	hours, err := svc.PausedBusinessHours(ctx, "t1", at(2025, time.June, 2, 8, 0), at(2025, time.June, 2, 18, 0))
	require.NoError(t, err)
	require.InDelta(t, 1.0, hours, 1e-9)
}

func TestIsPausingStatus(t *testing.T) {
	svc, _ := newPauseFixture(t, nil)

	require.True(t, svc.IsPausingStatus(domain.TicketStatusPendingUser))
	require.True(t, svc.IsPausingStatus(domain.TicketStatusInReview))
	require.False(t, svc.IsPausingStatus(domain.TicketStatusOpen))
	require.False(t, svc.IsPausingStatus(domain.TicketStatusResolved))
}
