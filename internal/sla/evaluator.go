package sla

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// PauseSource answers pause-ledger queries during evaluation.
type PauseSource interface {
	PausedBusinessHours(ctx context.Context, ticketID string, windowStart, windowEnd time.Time) (float64, error)
	HasOpenPause(ctx context.Context, ticketID string) (bool, error)
}

// Evaluator combines elapsed time, pause time, and priority budgets into a
// per-ticket SlaResult.
type Evaluator struct {
	engine *Engine
	pauses PauseSource
	logger *zap.Logger
}

// NewEvaluator constructs the evaluator.
func NewEvaluator(engine *Engine, pauses PauseSource, logger *zap.Logger) *Evaluator {
	return &Evaluator{engine: engine, pauses: pauses, logger: logger}
}

// Location returns the business calendar's location.
func (ev *Evaluator) Location() *time.Location {
	return ev.engine.Calendar().Location()
}

// Evaluate computes the SLA standing of one ticket at the given instant.
// A nil or inactive configuration yields a CONFIGURATION_ERROR; batch
// callers skip the ticket and count it as errored.
func (ev *Evaluator) Evaluate(ctx context.Context, ticket *domain.Ticket, cfg *domain.SlaConfiguration, now time.Time) (*domain.SlaResult, error) {
	if cfg == nil || !cfg.IsActive {
		return nil, apperrors.NewConfigurationError("no active SLA configuration for priority", map[string]any{
			"ticket_id": ticket.ID,
			"priority":  ticket.Priority,
		})
	}

	result := &domain.SlaResult{
		TicketID:              ticket.ID,
		ExternalKey:           ticket.ExternalKey,
		Priority:              ticket.Priority,
		Status:                ticket.Status,
		ResponseBudgetHours:   cfg.ResponseHours,
		ResolutionBudgetHours: cfg.ResolutionHours,
		ComputedAt:            now,
	}

	// Response window: frozen at the first response once it exists.
	responseEnd := now
	if ticket.FirstResponseAt != nil {
		responseEnd = *ticket.FirstResponseAt
		result.ResponseFrozen = true
	}
	elapsed, paused, err := ev.windowHours(ctx, ticket, ticket.OpenedAt, responseEnd)
	if err != nil {
		return nil, err
	}
	result.ResponseElapsedHours = elapsed
	result.ResponsePausedHours = paused
	result.ResponsePercentConsumed = percentConsumed(elapsed, cfg.ResponseHours)
	result.ResponseState = classify(result.ResponsePercentConsumed, cfg.RiskThresholdPercent)

	// Resolution window: frozen at completion once it exists.
	resolutionEnd := now
	if ticket.CompletedAt != nil {
		resolutionEnd = *ticket.CompletedAt
		result.ResolutionFrozen = true
	}
	elapsed, paused, err = ev.windowHours(ctx, ticket, ticket.OpenedAt, resolutionEnd)
	if err != nil {
		return nil, err
	}
	result.ResolutionElapsedHours = elapsed
	result.ResolutionPausedHours = paused
	result.ResolutionPercentConsumed = percentConsumed(elapsed, cfg.ResolutionHours)
	result.ResolutionState = classify(result.ResolutionPercentConsumed, cfg.RiskThresholdPercent)

	open, err := ev.pauses.HasOpenPause(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	result.CurrentlyPaused = open

	return result, nil
}

// windowHours measures net elapsed business hours over [start, end],
// subtracting pause overlap and clamping at zero. A malformed window is a
// caller bug: it is logged and contributes zero rather than failing the
// ticket.
func (ev *Evaluator) windowHours(ctx context.Context, ticket *domain.Ticket, start, end time.Time) (elapsed, paused float64, err error) {
	raw, err := ev.engine.BusinessHoursBetween(ctx, start, end)
	if err != nil {
		if apperrors.HasCode(err, "INVALID_INTERVAL") {
			ev.logger.Warn("invalid SLA window, treating as zero",
				zap.String("ticket_id", ticket.ID),
				zap.Time("start", start),
				zap.Time("end", end),
			)
			return 0, 0, nil
		}
		return 0, 0, err
	}

	paused, err = ev.pauses.PausedBusinessHours(ctx, ticket.ID, start, end)
	if err != nil {
		return 0, 0, err
	}

	elapsed = raw - paused
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, paused, nil
}

func percentConsumed(elapsed, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return elapsed / budget * 100
}

func classify(percent, riskThreshold float64) domain.ComplianceState {
	switch {
	case percent >= 100:
		return domain.ComplianceBreached
	case percent >= riskThreshold:
		return domain.ComplianceAtRisk
	default:
		return domain.ComplianceOnTrack
	}
}

// RoundPercent rounds to one decimal for display. Internal accounting keeps
// unrounded floats.
func RoundPercent(v float64) float64 {
	return math.Round(v*10) / 10
}
