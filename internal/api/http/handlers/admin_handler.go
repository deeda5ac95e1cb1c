package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/scheduler"
	"github.com/spec-kit/sla-service/internal/service"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

// CacheStatsProvider is satisfied by backends that track hit/miss counters.
type CacheStatsProvider interface {
	Stats() (hits, misses int64, size int)
}

// AdminHandler serves the operational surface: scheduler status, cache
// diagnostics, calendar generation, the status-change webhook, and manual
// pauses.
type AdminHandler struct {
	scheduler  *scheduler.Scheduler
	runLog     repository.RunLogRepository
	cacheStats CacheStatsProvider
	metrics    *observability.Metrics
	holidays   *service.HolidayService
	pauses     *service.PauseService
	dispatcher events.Dispatcher
}

// AdminDependencies bundles collaborators for the admin surface.
type AdminDependencies struct {
	Scheduler  *scheduler.Scheduler
	RunLog     repository.RunLogRepository
	CacheStats CacheStatsProvider
	Metrics    *observability.Metrics
	Holidays   *service.HolidayService
	Pauses     *service.PauseService
	Dispatcher events.Dispatcher
}

// NewAdminHandler constructs handler. CacheStats may be nil when the backend
// does not track counters.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{
		scheduler:  deps.Scheduler,
		runLog:     deps.RunLog,
		cacheStats: deps.CacheStats,
		metrics:    deps.Metrics,
		holidays:   deps.Holidays,
		pauses:     deps.Pauses,
		dispatcher: deps.Dispatcher,
	}
}

// SchedulerStatus GET /sla/scheduler.
func (h *AdminHandler) SchedulerStatus(c *fiber.Ctx) error {
	runs, err := h.runLog.ListRecent(c.UserContext(), 10)
	if err != nil {
		return err
	}
	recent := make([]dto.RecomputeRunResponse, 0, len(runs))
	for i := range runs {
		recent = append(recent, dto.FromRun(&runs[i]))
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"scheduler":   h.scheduler.Status(),
		"recent_runs": recent,
	}})
}

// CacheStats GET /sla/cache.
func (h *AdminHandler) CacheStats(c *fiber.Ctx) error {
	passes, failures, erroredTickets, lastDuration := h.metrics.RecomputeStats()
	stats := fiber.Map{
		"recompute": fiber.Map{
			"passes":           passes,
			"failures":         failures,
			"errored_tickets":  erroredTickets,
			"last_duration_ms": lastDuration.Milliseconds(),
		},
	}
	if h.cacheStats != nil {
		hits, misses, size := h.cacheStats.Stats()
		stats["backend"] = fiber.Map{
			"hits":   hits,
			"misses": misses,
			"slots":  size,
		}
	}
	return c.JSON(fiber.Map{"data": stats})
}

// GenerateHolidays POST /sla/holidays/generate/:year.
func (h *AdminHandler) GenerateHolidays(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return apperrors.NewValidationError("year must be numeric", nil)
	}
	inserted, err := h.holidays.GenerateYear(c.UserContext(), year)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"year":     year,
		"inserted": inserted,
	}})
}

// ListHolidays GET /sla/holidays/:year.
func (h *AdminHandler) ListHolidays(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return apperrors.NewValidationError("year must be numeric", nil)
	}
	holidays, err := h.holidays.ListYear(c.UserContext(), year)
	if err != nil {
		return err
	}
	items := make([]dto.HolidayResponse, 0, len(holidays))
	for i := range holidays {
		items = append(items, dto.FromHoliday(&holidays[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// StatusChanged POST /sla/tickets/:id/status. The ticketing subsystem calls
// this webhook on every transition; the pause worker reacts through the
// dispatcher.
func (h *AdminHandler) StatusChanged(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NewStatus == "" {
		return apperrors.NewValidationError("new_status required", nil)
	}

	changedAt := time.Now()
	if req.ChangedAt != nil {
		changedAt = *req.ChangedAt
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticketID,
		Timestamp: changedAt,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: req.OldStatus,
			NewStatus: req.NewStatus,
			ChangedAt: changedAt,
		},
	}
	if err := h.dispatcher.Publish(c.UserContext(), event); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"event_id": event.ID,
	}})
}

// OpenPause POST /sla/tickets/:id/pause.
func (h *AdminHandler) OpenPause(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	var req dto.ManualPauseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return apperrors.NewValidationError("reason required", nil)
	}

	startedAt := time.Now()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}
	pause, err := h.pauses.OpenPause(c.UserContext(), ticketID, domain.PauseTriggerManual, nil, req.Reason, startedAt)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromPause(pause)})
}

// ClosePause POST /sla/tickets/:id/unpause.
func (h *AdminHandler) ClosePause(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	var req dto.ManualUnpauseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	endedAt := time.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}
	pause, err := h.pauses.ClosePause(c.UserContext(), ticketID, endedAt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromPause(pause)})
}

// ListPauses GET /sla/tickets/:id/pauses.
func (h *AdminHandler) ListPauses(c *fiber.Ctx) error {
	pauses, err := h.pauses.ListPauses(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.PauseResponse, 0, len(pauses))
	for i := range pauses {
		items = append(items, dto.FromPause(&pauses[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
