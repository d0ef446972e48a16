package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// DefaultChannelTimeout bounds each outbound delivery attempt.
const DefaultChannelTimeout = 10 * time.Second

// GroupSender broadcasts to the shared team chat.
type GroupSender interface {
	SendGroupMessage(ctx context.Context, text string) error
}

// DirectSender messages a single user by chat id.
type DirectSender interface {
	SendDirectMessage(ctx context.Context, chatID int64, text string) error
}

// EmailSender delivers a plain text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notifier is the dispatch entry point used by routing and reminders.
type Notifier interface {
	Notify(ctx context.Context, req NotifyRequest) (domain.DispatchResult, error)
}

// NotifyRequest describes one notification to fan out.
type NotifyRequest struct {
	Recipient   *domain.User
	Type        domain.NotificationType
	Ticket      *domain.Ticket
	Extra       map[string]string
	SendToGroup bool
}

// NotificationService fans a notification out to in-app, group, direct and
// email channels.
type NotificationService struct {
	store     repository.Store
	templates *Templates
	group     GroupSender
	direct    DirectSender
	email     EmailSender
	timeout   time.Duration
	publicURL string
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NotificationDependencies bundles collaborators. Nil senders disable their channel.
type NotificationDependencies struct {
	Store          repository.Store
	Templates      *Templates
	Group          GroupSender
	Direct         DirectSender
	Email          EmailSender
	ChannelTimeout time.Duration
	PublicURL      string
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) (*NotificationService, error) {
	n := &NotificationService{
		store:     deps.Store,
		templates: deps.Templates,
		group:     deps.Group,
		direct:    deps.Direct,
		email:     deps.Email,
		timeout:   deps.ChannelTimeout,
		publicURL: strings.TrimRight(deps.PublicURL, "/"),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.timeout <= 0 {
		n.timeout = DefaultChannelTimeout
	}
	if n.templates == nil {
		templates, err := DefaultTemplates()
		if err != nil {
			return nil, err
		}
		n.templates = templates
	}
	return n, nil
}

// Notify renders the message and delivers it. The in-app record is written
// synchronously and its failure is returned. The other channels are
// best-effort: each runs independently under its own timeout, and a failure
// only shows up as a failed outcome in the result.
func (n *NotificationService) Notify(ctx context.Context, req NotifyRequest) (domain.DispatchResult, error) {
	result := domain.DispatchResult{Type: req.Type}
	if req.Recipient != nil {
		id := req.Recipient.ID
		result.RecipientID = &id
	}

	msg, err := n.templates.Render(req.Type, n.templateData(req))
	if err != nil {
		return result, apperrors.NewValidationError(err.Error(), map[string]any{"type": req.Type})
	}

	inApp, record, inAppErr := n.deliverInApp(ctx, req, msg)
	result.Notification = record

	outcomes := make([]domain.ChannelOutcome, 3)
	tasks := []struct {
		channel domain.Channel
		send    func(context.Context) domain.ChannelOutcome
	}{
		{domain.ChannelGroup, func(ctx context.Context) domain.ChannelOutcome { return n.deliverGroup(ctx, req, msg) }},
		{domain.ChannelDirect, func(ctx context.Context) domain.ChannelOutcome { return n.deliverDirect(ctx, req, msg) }},
		{domain.ChannelEmail, func(ctx context.Context) domain.ChannelOutcome { return n.deliverEmail(ctx, req, msg) }},
	}

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = n.runChannel(ctx, task.channel, task.send)
			return nil
		})
	}
	_ = g.Wait()

	result.Outcomes = append([]domain.ChannelOutcome{inApp}, outcomes...)
	for _, o := range result.Outcomes {
		n.metrics.RecordChannelOutcome(string(o.Channel), string(o.Status))
		if o.Status == domain.OutcomeFailed {
			n.logger.Warn("notification channel failed",
				zap.String("channel", string(o.Channel)),
				zap.String("type", string(req.Type)),
				zap.String("reason", o.Reason),
				zap.Error(o.Err))
		}
	}

	if record != nil {
		flags := result.Flags()
		record.Sent = flags
		if err := n.store.Notifications().UpdateSent(ctx, record.ID, flags); err != nil {
			n.logger.Warn("unable to store delivery flags", zap.String("notification_id", record.ID), zap.Error(err))
		}
	}

	if inAppErr != nil {
		return result, inAppErr
	}
	return result, nil
}

// runChannel isolates one best-effort channel: it gets its own deadline and
// a panic inside the sender becomes a failed outcome.
func (n *NotificationService) runChannel(ctx context.Context, ch domain.Channel, send func(context.Context) domain.ChannelOutcome) (outcome domain.ChannelOutcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			outcome = failed(ch, apperrors.NewChannelDeliveryFailure(string(ch), err))
		}
	}()
	return send(ctx)
}

func (n *NotificationService) deliverInApp(ctx context.Context, req NotifyRequest, msg RenderedMessage) (domain.ChannelOutcome, *domain.NotificationRecord, error) {
	if req.Recipient == nil {
		return skipped(domain.ChannelInApp, "no recipient"), nil, nil
	}
	record := &domain.NotificationRecord{
		RecipientID: req.Recipient.ID,
		Type:        req.Type,
		Title:       msg.Title,
		Message:     msg.Body,
		Sent:        domain.ChannelFlags{InApp: true},
	}
	if req.Ticket != nil {
		id := req.Ticket.ID
		record.TicketID = &id
	}
	if err := n.store.Notifications().Create(ctx, record); err != nil {
		return failed(domain.ChannelInApp, err), nil, apperrors.MapError(fmt.Errorf("store in-app notification: %w", err))
	}
	return domain.ChannelOutcome{Channel: domain.ChannelInApp, Status: domain.OutcomeSent}, record, nil
}

func (n *NotificationService) deliverGroup(ctx context.Context, req NotifyRequest, msg RenderedMessage) domain.ChannelOutcome {
	if !req.SendToGroup {
		return skipped(domain.ChannelGroup, "not requested")
	}
	if n.group == nil {
		return skipped(domain.ChannelGroup, "group channel not configured")
	}
	if err := n.group.SendGroupMessage(ctx, msg.Title+"\n\n"+msg.Body); err != nil {
		return failed(domain.ChannelGroup, apperrors.NewChannelDeliveryFailure(string(domain.ChannelGroup), err))
	}
	return domain.ChannelOutcome{Channel: domain.ChannelGroup, Status: domain.OutcomeSent}
}

func (n *NotificationService) deliverDirect(ctx context.Context, req NotifyRequest, msg RenderedMessage) domain.ChannelOutcome {
	switch {
	case req.Recipient == nil:
		return skipped(domain.ChannelDirect, "no recipient")
	case req.Recipient.TelegramChatID == nil:
		return skipped(domain.ChannelDirect, "recipient has no chat id")
	case n.direct == nil:
		return skipped(domain.ChannelDirect, "direct channel not configured")
	}
	if err := n.direct.SendDirectMessage(ctx, *req.Recipient.TelegramChatID, msg.Title+"\n\n"+msg.Body); err != nil {
		return failed(domain.ChannelDirect, apperrors.NewChannelDeliveryFailure(string(domain.ChannelDirect), err))
	}
	return domain.ChannelOutcome{Channel: domain.ChannelDirect, Status: domain.OutcomeSent}
}

func (n *NotificationService) deliverEmail(ctx context.Context, req NotifyRequest, msg RenderedMessage) domain.ChannelOutcome {
	switch {
	case req.Recipient == nil:
		return skipped(domain.ChannelEmail, "no recipient")
	case n.email == nil:
		return skipped(domain.ChannelEmail, "email disabled")
	case strings.TrimSpace(req.Recipient.Email) == "":
		return skipped(domain.ChannelEmail, "recipient has no email")
	case !req.Recipient.EmailNotifications:
		return skipped(domain.ChannelEmail, "recipient opted out")
	}
	if err := n.email.SendEmail(ctx, req.Recipient.Email, msg.Title, msg.Body); err != nil {
		return failed(domain.ChannelEmail, apperrors.NewChannelDeliveryFailure(string(domain.ChannelEmail), err))
	}
	return domain.ChannelOutcome{Channel: domain.ChannelEmail, Status: domain.OutcomeSent}
}

func (n *NotificationService) templateData(req NotifyRequest) TemplateData {
	data := TemplateData{
		Reason:  req.Extra["reason"],
		Author:  req.Extra["author"],
		Comment: req.Extra["comment"],
	}
	if t := req.Ticket; t != nil {
		data.Title = t.Title
		data.Status = t.Status
		data.Priority = t.Priority
		data.WorkType = t.WorkType
		data.Late = t.CompletedLate
		if t.Deadline != nil {
			data.Deadline = t.Deadline.UTC().Format("2006-01-02 15:04 MST")
		}
		if n.publicURL != "" {
			data.Link = n.publicURL + "/tickets/" + t.ID
		}
	}
	return data
}

func skipped(ch domain.Channel, reason string) domain.ChannelOutcome {
	return domain.ChannelOutcome{Channel: ch, Status: domain.OutcomeSkipped, Reason: reason}
}

func failed(ch domain.Channel, err error) domain.ChannelOutcome {
	return domain.ChannelOutcome{Channel: ch, Status: domain.OutcomeFailed, Reason: err.Error(), Err: err}
}
