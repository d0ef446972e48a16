package dto

import (
	"time"

	"github.com/spec-kit/request-desk/internal/domain"
)

// NotificationResponse is an in-app notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  *string                 `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	Sent      domain.ChannelFlags     `json:"sent"`
	CreatedAt time.Time               `json:"created_at"`
	ReadAt    *time.Time              `json:"read_at"`
}
