package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/service"
	"github.com/spec-kit/sla-service/internal/sla"
)

// StartPauseWorker wires ticket status-change events into the pause ledger
// and calendar-change events into calendar cache invalidation.
func StartPauseWorker(dispatcher events.Dispatcher, pauses *service.PauseService, calendar *sla.Calendar, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	dispatcher.Subscribe(events.EventTicketStatusChanged, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketStatusChangedPayload)
		if !ok {
			logger.Warn("unexpected status-change payload type",
				zap.String("ticket_id", event.TicketID),
			)
			return nil
		}
		at := payload.ChangedAt
		if at.IsZero() {
			at = event.Timestamp
		}
		return pauses.ApplyStatusChange(ctx, event.TicketID, payload.NewStatus, at)
	})

	dispatcher.Subscribe(events.EventCalendarChanged, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CalendarChangedPayload)
		if !ok || payload.Year == 0 {
			calendar.InvalidateAll()
			return nil
		}
		calendar.InvalidateHolidayYear(payload.Year)
		return nil
	})
}
