package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/events"
	"github.com/spec-kit/request-desk/internal/repository"
)

// Enqueuer runs notification work off the request path.
type Enqueuer interface {
	Enqueue(name string, job func(ctx context.Context)) bool
}

// audience names a group of users related to a ticket.
type audience int

const (
	audienceRequester audience = iota
	audienceAssignee
	audienceCollaborators
	audienceManagers
	audienceApprover
	audienceFinalApprover
)

// route says who hears about an action and with which template.
type route struct {
	typ       domain.NotificationType
	audiences []audience
	group     bool
}

// NotificationRouter turns committed ticket events into notifications.
type NotificationRouter struct {
	store    repository.Store
	notifier Notifier
	queue    Enqueuer
	logger   *zap.Logger
}

// NewNotificationRouter builds a router. With a nil queue notifications are
// sent inline.
func NewNotificationRouter(store repository.Store, notifier Notifier, queue Enqueuer, logger *zap.Logger) *NotificationRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationRouter{store: store, notifier: notifier, queue: queue, logger: logger}
}

// RegisterHandlers subscribes to events.
func (r *NotificationRouter) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, r.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketTransitioned, r.handleTicketTransitioned)
	dispatcher.Subscribe(events.EventCommentAdded, r.handleCommentAdded)
}

// routeFor maps a workflow action on a ticket to its notification.
func routeFor(action domain.Action, ticket *domain.Ticket) (route, bool) {
	switch action {
	case domain.ActionCreated:
		return route{typ: domain.NotificationNewRequest, audiences: []audience{audienceManagers, audienceApprover}, group: true}, true
	case domain.ActionApproved:
		if ticket.Status == domain.TicketStatusPendingCreative {
			return route{typ: domain.NotificationAwaitingFinalApproval, audiences: []audience{audienceFinalApprover}}, true
		}
		return route{typ: domain.NotificationApproved, audiences: []audience{audienceRequester, audienceManagers}, group: true}, true
	case domain.ActionFinalApproved:
		return route{typ: domain.NotificationApproved, audiences: []audience{audienceRequester, audienceManagers}, group: true}, true
	case domain.ActionRejected:
		return route{typ: domain.NotificationRejected, audiences: []audience{audienceRequester}}, true
	case domain.ActionAssigned:
		return route{typ: domain.NotificationAssigned, audiences: []audience{audienceAssignee}}, true
	case domain.ActionStarted:
		return route{typ: domain.NotificationStarted, audiences: []audience{audienceRequester}}, true
	case domain.ActionCompleted:
		return route{typ: domain.NotificationCompleted, audiences: []audience{audienceRequester, audienceCollaborators}, group: true}, true
	case domain.ActionConfirmed:
		return route{typ: domain.NotificationConfirmed, audiences: []audience{audienceAssignee}}, true
	case domain.ActionRevisionRequested:
		return route{typ: domain.NotificationRevisionRequested, audiences: []audience{audienceAssignee}}, true
	case domain.ActionRolledBack:
		return route{typ: domain.NotificationRolledBack, audiences: []audience{audienceRequester, audienceAssignee}}, true
	case domain.ActionCommentAdded:
		return route{typ: domain.NotificationCommentAdded, audiences: []audience{audienceRequester, audienceAssignee, audienceCollaborators}}, true
	}
	return route{}, false
}

func (r *NotificationRouter) handleTicketCreated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.Ticket == nil {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	rt, _ := routeFor(domain.ActionCreated, payload.Ticket)
	r.dispatch(event, rt, payload.Ticket, nil)
	return nil
}

func (r *NotificationRouter) handleTicketTransitioned(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTransitionedPayload)
	if !ok || payload.Ticket == nil {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	rt, ok := routeFor(payload.Action, payload.Ticket)
	if !ok {
		return nil
	}
	var extra map[string]string
	if payload.Action == domain.ActionRejected || payload.Action == domain.ActionRevisionRequested {
		extra = map[string]string{"reason": payload.Detail}
	}
	r.dispatch(event, rt, payload.Ticket, extra)
	return nil
}

func (r *NotificationRouter) handleCommentAdded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok || payload.Ticket == nil || payload.Comment == nil {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	rt, _ := routeFor(domain.ActionCommentAdded, payload.Ticket)
	r.dispatch(event, rt, payload.Ticket, map[string]string{"comment": stringPreview(payload.Comment.Body, 280)})
	return nil
}

// dispatch resolves recipients and notifies each of them. The actor who
// caused the event is never notified about it.
func (r *NotificationRouter) dispatch(event events.Event, rt route, ticket *domain.Ticket, extra map[string]string) {
	job := func(ctx context.Context) {
		recipients, err := resolveRecipients(ctx, r.store, ticket, rt.audiences...)
		if err != nil {
			r.logger.Error("resolve notification recipients", zap.String("ticket_id", ticket.ID), zap.Error(err))
			return
		}
		if rt.typ == domain.NotificationCommentAdded {
			if author, err := r.store.Users().GetByID(ctx, event.Actor.UserID); err == nil {
				extra["author"] = author.Name
			}
		}

		group := rt.group
		for i := range recipients {
			if recipients[i].ID == event.Actor.UserID {
				continue
			}
			r.notify(ctx, NotifyRequest{Recipient: &recipients[i], Type: rt.typ, Ticket: ticket, Extra: extra, SendToGroup: group})
			group = false
		}
		if group {
			r.notify(ctx, NotifyRequest{Type: rt.typ, Ticket: ticket, Extra: extra, SendToGroup: true})
		}
	}

	name := fmt.Sprintf("%s:%s", rt.typ, ticket.ID)
	if r.queue == nil || !r.queue.Enqueue(name, job) {
		if r.queue != nil {
			r.logger.Warn("notification queue full; sending inline", zap.String("job", name))
		}
		job(context.Background())
	}
}

func (r *NotificationRouter) notify(ctx context.Context, req NotifyRequest) {
	if _, err := r.notifier.Notify(ctx, req); err != nil {
		recipient := ""
		if req.Recipient != nil {
			recipient = req.Recipient.ID
		}
		r.logger.Error("notification failed",
			zap.String("type", string(req.Type)),
			zap.String("ticket_id", req.Ticket.ID),
			zap.String("recipient_id", recipient),
			zap.Error(err))
	}
}

// resolveRecipients expands audiences into distinct active users.
func resolveRecipients(ctx context.Context, store repository.Store, ticket *domain.Ticket, audiences ...audience) ([]domain.User, error) {
	seen := map[string]bool{}
	var result []domain.User

	add := func(u *domain.User) {
		if u == nil || !u.IsActive || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		result = append(result, *u)
	}
	byID := func(id *string) error {
		if id == nil || *id == "" {
			return nil
		}
		u, err := store.Users().GetByID(ctx, *id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		add(u)
		return nil
	}

	for _, a := range audiences {
		var err error
		switch a {
		case audienceRequester:
			requester := ticket.RequesterID
			err = byID(&requester)
		case audienceAssignee:
			err = byID(ticket.AssigneeID)
		case audienceApprover:
			err = byID(ticket.ApproverID)
		case audienceFinalApprover:
			err = byID(ticket.FinalApproverID)
		case audienceManagers:
			var managers []domain.User
			managers, err = store.Users().ListByDepartmentRole(ctx, ticket.DepartmentID, domain.RoleManager)
			if err == nil && ticket.ProductID != nil {
				var owners []domain.User
				owners, err = store.Users().ListByProductRole(ctx, *ticket.ProductID, domain.RoleManager)
				managers = append(managers, owners...)
			}
			for i := range managers {
				add(&managers[i])
			}
		case audienceCollaborators:
			var collaborators []domain.TicketCollaborator
			collaborators, err = store.Collaborators().ListByTicket(ctx, ticket.ID)
			for _, c := range collaborators {
				id := c.UserID
				if err = byID(&id); err != nil {
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
