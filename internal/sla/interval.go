package sla

import (
	"context"
	"time"

	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// Engine computes elapsed business hours between two instants.
type Engine struct {
	cal *Calendar
}

// NewEngine constructs the interval engine over a calendar.
func NewEngine(cal *Calendar) *Engine {
	return &Engine{cal: cal}
}

// Calendar exposes the underlying calendar.
func (e *Engine) Calendar() *Calendar {
	return e.cal
}

// BusinessHoursBetween returns the business hours elapsed in [start, end).
// Holidays and days without an active rule contribute zero. Window bounds
// are inclusive below and exclusive above, so adjacent intervals never
// double-count an instant. An end before start yields 0 and an
// INVALID_INTERVAL error; callers in batch paths log it and keep going.
func (e *Engine) BusinessHoursBetween(ctx context.Context, start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, apperrors.NewInvalidInterval("interval end precedes start", map[string]any{
			"start": start,
			"end":   end,
		})
	}
	if !end.After(start) {
		return 0, nil
	}

	loc := e.cal.Location()
	start = start.In(loc)
	end = end.In(loc)

	var totalSeconds float64
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	for !day.After(lastDay) {
		win, ok, err := e.cal.BusinessWindowFor(ctx, day)
		if err != nil {
			return 0, err
		}
		if ok {
			overlapStart := win.Start
			if start.After(overlapStart) {
				overlapStart = start
			}
			overlapEnd := win.End
			if end.Before(overlapEnd) {
				overlapEnd = end
			}
			if overlapStart.Before(overlapEnd) {
				totalSeconds += overlapEnd.Sub(overlapStart).Seconds()
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return totalSeconds / 3600, nil
}
