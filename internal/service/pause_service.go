package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// PauseService is the pause ledger: it opens and closes pause intervals and
// answers how much business time a ticket spent paused. Mutations serialize
// per ticket; the database's partial unique index backs the same invariant
// across processes.
type PauseService struct {
	pauses  repository.PauseRepository
	engine  *sla.Engine
	pausing map[domain.TicketStatus]struct{}
	clock   func() time.Time
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// PauseDependencies bundles collaborators for the pause ledger.
type PauseDependencies struct {
	PauseRepo       repository.PauseRepository
	Engine          *sla.Engine
	PausingStatuses []string
	Clock           func() time.Time
	Logger          *zap.Logger
}

// NewPauseService constructs the ledger.
func NewPauseService(deps PauseDependencies) *PauseService {
	pausing := make(map[domain.TicketStatus]struct{}, len(deps.PausingStatuses))
	for _, status := range deps.PausingStatuses {
		pausing[domain.TicketStatus(status)] = struct{}{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PauseService{
		pauses:  deps.PauseRepo,
		engine:  deps.Engine,
		pausing: pausing,
		clock:   clock,
		logger:  deps.Logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// IsPausingStatus reports whether the status suspends SLA accrual.
func (s *PauseService) IsPausingStatus(status domain.TicketStatus) bool {
	_, ok := s.pausing[status]
	return ok
}

// OpenPause records a new pause for the ticket. Fails with CONFLICT when an
// open pause already exists; the existing pause is untouched.
func (s *PauseService) OpenPause(ctx context.Context, ticketID string, trigger domain.PauseTrigger, causingStatus *domain.TicketStatus, reason string, startedAt time.Time) (*domain.PauseInterval, error) {
	unlock := s.lockTicket(ticketID)
	defer unlock()

	if _, err := s.pauses.GetOpenByTicket(ctx, ticketID); err == nil {
		return nil, apperrors.NewConflict("ticket already has an open pause", map[string]any{
			"ticket_id": ticketID,
		})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	pause := &domain.PauseInterval{
		TicketID:      ticketID,
		StartedAt:     startedAt,
		Trigger:       trigger,
		CausingStatus: causingStatus,
		Reason:        reason,
	}
	if err := s.pauses.Create(ctx, pause); err != nil {
		return nil, err
	}

	s.logger.Info("pause opened",
		zap.String("ticket_id", ticketID),
		zap.String("trigger", string(trigger)),
	)
	return pause, nil
}

// ClosePause ends the ticket's open pause. Fails with NOT_FOUND when no
// pause is open.
func (s *PauseService) ClosePause(ctx context.Context, ticketID string, endedAt time.Time) (*domain.PauseInterval, error) {
	unlock := s.lockTicket(ticketID)
	defer unlock()

	pause, err := s.pauses.CloseOpen(ctx, ticketID, endedAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pause closed",
		zap.String("ticket_id", ticketID),
		zap.Duration("wall_duration", endedAt.Sub(pause.StartedAt)),
	)
	return pause, nil
}

// ApplyStatusChange opens or closes an automatic pause to follow a ticket
// status transition. Called by the status-change worker; the ledger itself
// never watches ticket workflow.
func (s *PauseService) ApplyStatusChange(ctx context.Context, ticketID string, newStatus domain.TicketStatus, at time.Time) error {
	if s.IsPausingStatus(newStatus) {
		status := newStatus
		_, err := s.OpenPause(ctx, ticketID, domain.PauseTriggerStatus, &status, "automatic pause on status "+string(newStatus), at)
		if err != nil && apperrors.HasCode(err, "CONFLICT") {
			// already paused, nothing to do
			return nil
		}
		return err
	}

	_, err := s.ClosePause(ctx, ticketID, at)
	if err != nil && apperrors.HasCode(err, "NOT_FOUND") {
		return nil
	}
	return err
}

// HasOpenPause reports whether the ticket is currently paused.
func (s *PauseService) HasOpenPause(ctx context.Context, ticketID string) (bool, error) {
	_, err := s.pauses.GetOpenByTicket(ctx, ticketID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// PausedBusinessHours sums the business-hours overlap between the ticket's
// pauses and [windowStart, windowEnd]. Pauses are clipped to the window
// before measurement; an open pause ends at the current instant.
func (s *PauseService) PausedBusinessHours(ctx context.Context, ticketID string, windowStart, windowEnd time.Time) (float64, error) {
	pauses, err := s.pauses.ListByTicket(ctx, ticketID)
	if err != nil {
		return 0, err
	}

	now := s.clock()
	var total float64
	for _, pause := range pauses {
		start := pause.StartedAt
		end := now
		if pause.EndedAt != nil {
			end = *pause.EndedAt
		}
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(windowEnd) {
			end = windowEnd
		}
		if !start.Before(end) {
			continue
		}
		hours, err := s.engine.BusinessHoursBetween(ctx, start, end)
		if err != nil {
			return 0, err
		}
		total += hours
	}
	return total, nil
}

// ListPauses returns the ticket's full pause history.
func (s *PauseService) ListPauses(ctx context.Context, ticketID string) ([]domain.PauseInterval, error) {
	return s.pauses.ListByTicket(ctx, ticketID)
}

func (s *PauseService) lockTicket(ticketID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ticketID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
