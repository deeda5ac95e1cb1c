package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/service"
	apperrors "github.com/spec-kit/sla-service/pkg/util"
)

var validPeriods = map[string]struct{}{"7d": {}, "30d": {}, "60d": {}, "90d": {}}

// SlaHandler serves the read side of the SLA dashboard: every GET answers
// from the published cache snapshot, never by computing on the request path.
type SlaHandler struct {
	store     *cache.Store
	recompute *service.RecomputeService
}

// NewSlaHandler constructs handler.
func NewSlaHandler(store *cache.Store, recompute *service.RecomputeService) *SlaHandler {
	return &SlaHandler{store: store, recompute: recompute}
}

// Metrics GET /sla/metrics?period=30d.
func (h *SlaHandler) Metrics(c *fiber.Ctx) error {
	period := c.Query("period", "30d")
	if _, ok := validPeriods[period]; !ok {
		return apperrors.NewValidationError("unknown period", map[string]any{
			"period":  period,
			"allowed": []string{"7d", "30d", "60d", "90d"},
		})
	}
	return h.respondSlot(c, cache.MetricsKey(period))
}

// Dashboard GET /sla/dashboard.
func (h *SlaHandler) Dashboard(c *fiber.Ctx) error {
	return h.respondSlot(c, cache.KeyDashboard)
}

// Risk GET /sla/risk.
func (h *SlaHandler) Risk(c *fiber.Ctx) error {
	return h.respondSlot(c, cache.KeyRiskList)
}

// Breaches GET /sla/breaches.
func (h *SlaHandler) Breaches(c *fiber.Ctx) error {
	return h.respondSlot(c, cache.KeyBreaches)
}

// Ticket GET /sla/tickets/:id.
func (h *SlaHandler) Ticket(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	return h.respondSlot(c, cache.TicketKey(ticketID))
}

// Recompute POST /sla/recompute. Concurrent calls coalesce onto one pass.
func (h *SlaHandler) Recompute(c *fiber.Ctx) error {
	outcome, err := h.recompute.RecomputeAll(c.UserContext(), "manual")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRun(&outcome.Run)})
}

func (h *SlaHandler) respondSlot(c *fiber.Ctx, key string) error {
	entry, err := h.store.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":        entry.Payload,
		"stale":       entry.Stale,
		"computed_at": entry.ComputedAt,
	})
}
