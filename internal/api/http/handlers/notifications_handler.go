package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/service"
)

// NotificationsHandler serves the in-app inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /notifications?unread=true&limit=50.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	records, err := h.notifications.Inbox(c.UserContext(), actor, c.QueryBool("unread", false), parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.NotificationResponse{
			ID:        r.ID,
			TicketID:  r.TicketID,
			Type:      r.Type,
			Title:     r.Title,
			Message:   r.Message,
			IsRead:    r.IsRead,
			Sent:      r.Sent,
			CreatedAt: r.CreatedAt,
			ReadAt:    r.ReadAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
