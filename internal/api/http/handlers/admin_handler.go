package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/service"
)

// AdminHandler exposes operational endpoints to admins.
type AdminHandler struct {
	reminders *service.ReminderService
	cooldown  time.Duration
	window    *service.ActiveWindow
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewAdminHandler constructs handler. cooldown and window are the scheduled
// scan defaults.
func NewAdminHandler(reminders *service.ReminderService, cooldown time.Duration, window *service.ActiveWindow, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{reminders: reminders, cooldown: cooldown, window: window, metrics: metrics, now: time.Now}
}

// RunReminders POST /admin/reminders/run.
func (h *AdminHandler) RunReminders(c *fiber.Ctx) error {
	var req dto.ReminderRunRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cooldown := h.cooldown
	if req.CooldownHours != nil {
		cooldown = time.Duration(*req.CooldownHours * float64(time.Hour))
	}
	window := h.window
	if req.IgnoreWindow {
		window = nil
	}

	count, err := h.reminders.RunReminderScan(c.UserContext(), h.now(), cooldown, window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reminded": count}})
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
