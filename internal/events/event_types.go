package events

import (
	"time"

	"github.com/spec-kit/request-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket.created"
	EventTicketTransitioned EventType = "ticket.transitioned"
	EventTicketDeleted      EventType = "ticket.deleted"
	EventCommentAdded       EventType = "ticket.comment_added"
	EventCacheInvalidate    EventType = "cache.invalidate"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorFrom copies the identity fields relevant to subscribers.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, Role: a.Role}
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload carries the freshly created ticket.
type TicketCreatedPayload struct {
	Ticket *domain.Ticket `json:"ticket"`
}

// TicketTransitionedPayload describes a committed workflow action.
type TicketTransitionedPayload struct {
	Action     domain.Action       `json:"action"`
	FromStatus domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Detail     string              `json:"detail,omitempty"`
	Ticket     *domain.Ticket      `json:"ticket"`
}

// CommentAddedPayload carries the new comment and its ticket.
type CommentAddedPayload struct {
	Comment *domain.TicketComment `json:"comment"`
	Ticket  *domain.Ticket        `json:"ticket"`
}

// CacheInvalidatePayload names the ticket whose cached views are stale.
type CacheInvalidatePayload struct {
	Reason string `json:"reason"`
}
