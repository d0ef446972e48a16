package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository/memstore"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

func newNotifier(t *testing.T, f *fixture, group GroupSender, direct DirectSender, email EmailSender) *NotificationService {
	t.Helper()
	n, err := NewNotificationService(NotificationDependencies{
		Store:          f.store,
		Group:          group,
		Direct:         direct,
		Email:          email,
		ChannelTimeout: 100 * time.Millisecond,
		PublicURL:      "https://desk.example.com/",
		Metrics:        f.metrics,
		Logger:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("notification service: %v", err)
	}
	return n
}

func (f *fixture) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func statuses(result domain.DispatchResult) []string {
	out := make([]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		out = append(out, string(o.Channel)+":"+string(o.Status))
	}
	return out
}

func TestNotifyDeliversEveryChannel(t *testing.T) {
	f := newFixture(t)
	group, direct, email := &fakeGroup{}, &fakeDirect{}, &fakeEmail{}
	n := newNotifier(t, f, group, direct, email)
	ticket := f.createTicket(t, "d1", domain.TicketPriorityHigh)

	result, err := n.Notify(context.Background(), NotifyRequest{
		Recipient:   f.user(t, "mgr"),
		Type:        domain.NotificationNewRequest,
		Ticket:      ticket,
		SendToGroup: true,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	want := []string{"in_app:sent", "group:sent", "direct:sent", "email:sent"}
	if got := statuses(result); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected outcomes %v, got %v", want, got)
	}
	if len(group.messages) != 1 || !strings.Contains(group.messages[0], "https://desk.example.com/tickets/"+ticket.ID) {
		t.Fatalf("group message should carry the ticket link, got %v", group.messages)
	}
	if len(direct.sent[100]) != 1 {
		t.Fatalf("expected one direct message to chat 100, got %v", direct.sent)
	}
	if len(email.recipients) != 1 || email.recipients[0] != "milo@example.com" {
		t.Fatalf("unexpected email recipients %v", email.recipients)
	}

	inbox, err := n.Inbox(context.Background(), f.manager, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 1 {
		t.Fatalf("expected one in-app notification, got %d", len(inbox))
	}
	if sent := inbox[0].Sent; !sent.InApp || !sent.Group || !sent.Direct || !sent.Email {
		t.Fatalf("stored flags should reflect every delivery, got %+v", sent)
	}
	if inbox[0].TicketID == nil || *inbox[0].TicketID != ticket.ID {
		t.Fatalf("notification should reference the ticket, got %v", inbox[0].TicketID)
	}
}

func TestNotifyIsolatesChannelFailures(t *testing.T) {
	f := newFixture(t)
	group := &fakeGroup{err: errBoom}
	direct := &fakeDirect{panic: true}
	email := &fakeEmail{}
	n := newNotifier(t, f, group, direct, email)
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	result, err := n.Notify(context.Background(), NotifyRequest{
		Recipient:   f.user(t, "mgr"),
		Type:        domain.NotificationApproved,
		Ticket:      ticket,
		SendToGroup: true,
	})
	if err != nil {
		t.Fatalf("best-effort failures must not surface, got %v", err)
	}

	want := []string{"in_app:sent", "group:failed", "direct:failed", "email:sent"}
	if got := statuses(result); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected outcomes %v, got %v", want, got)
	}
	groupOutcome, _ := result.Outcome(domain.ChannelGroup)
	if !apperrors.IsCode(groupOutcome.Err, apperrors.CodeChannelDelivery) {
		t.Fatalf("group failure should be a channel delivery error, got %v", groupOutcome.Err)
	}
	directOutcome, _ := result.Outcome(domain.ChannelDirect)
	if !strings.Contains(directOutcome.Reason, "panic") {
		t.Fatalf("panic should be captured as a failure, got %q", directOutcome.Reason)
	}

	snap := f.metrics.Snapshot()
	if snap.ChannelOutcomes["group|failed"] != 1 || snap.ChannelOutcomes["email|sent"] != 1 {
		t.Fatalf("unexpected channel metrics %v", snap.ChannelOutcomes)
	}
}

func TestNotifyChannelTimeout(t *testing.T) {
	f := newFixture(t)
	n := newNotifier(t, f, nil, &fakeDirect{block: true}, nil)

	start := time.Now()
	result, err := n.Notify(context.Background(), NotifyRequest{Recipient: f.user(t, "dsg"), Type: domain.NotificationAssigned})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("slow channel should be cut off, took %s", elapsed)
	}
	if o, _ := result.Outcome(domain.ChannelDirect); o.Status != domain.OutcomeFailed {
		t.Fatalf("expected direct timeout failure, got %+v", o)
	}
	if !result.AnySent() {
		t.Fatal("in-app should still have been delivered")
	}
}

func TestNotifySkipsUnavailableChannels(t *testing.T) {
	f := newFixture(t)
	n := newNotifier(t, f, &fakeGroup{}, &fakeDirect{}, &fakeEmail{})

	// rita has no chat id and has not opted in to email.
	result, err := n.Notify(context.Background(), NotifyRequest{Recipient: f.user(t, "req"), Type: domain.NotificationStarted})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"in_app:sent", "group:skipped", "direct:skipped", "email:skipped"}
	if got := statuses(result); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected outcomes %v, got %v", want, got)
	}
}

func TestNotifyInAppFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	direct := &fakeDirect{}
	n := newNotifier(t, f, nil, direct, nil)

	f.store.SetFault(memstore.OpCreateNotification, errBoom)
	result, err := n.Notify(context.Background(), NotifyRequest{Recipient: f.user(t, "dsg"), Type: domain.NotificationAssigned})
	if err == nil {
		t.Fatal("expected in-app failure to be returned")
	}
	if o, _ := result.Outcome(domain.ChannelInApp); o.Status != domain.OutcomeFailed {
		t.Fatalf("expected failed in-app outcome, got %+v", o)
	}
	if o, _ := result.Outcome(domain.ChannelDirect); o.Status != domain.OutcomeSent {
		t.Fatalf("direct should still be attempted, got %+v", o)
	}
	if len(direct.sent[200]) != 1 {
		t.Fatalf("expected direct delivery to chat 200, got %v", direct.sent)
	}
}

func TestNotifyUnknownType(t *testing.T) {
	f := newFixture(t)
	n := newNotifier(t, f, nil, nil, nil)
	_, err := n.Notify(context.Background(), NotifyRequest{Recipient: f.user(t, "dsg"), Type: "carrier_pigeon"})
	expectCode(t, err, apperrors.CodeValidation)
}

func TestInboxMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := newNotifier(t, f, nil, nil, nil)
	result, err := n.Notify(ctx, NotifyRequest{Recipient: f.user(t, "dsg"), Type: domain.NotificationAssigned})
	if err != nil {
		t.Fatal(err)
	}
	id := result.Notification.ID

	err = n.MarkRead(ctx, f.manager, id)
	expectCode(t, err, apperrors.CodeNotFound)

	if err := n.MarkRead(ctx, f.designer, id); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err := n.Inbox(ctx, f.designer, true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}

func TestTemplatesRender(t *testing.T) {
	templates, err := DefaultTemplates()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []domain.NotificationType{
		domain.NotificationNewRequest, domain.NotificationAwaitingFinalApproval, domain.NotificationApproved,
		domain.NotificationRejected, domain.NotificationAssigned, domain.NotificationStarted,
		domain.NotificationCompleted, domain.NotificationConfirmed, domain.NotificationRevisionRequested,
		domain.NotificationRolledBack, domain.NotificationCommentAdded, domain.NotificationReminder,
		domain.NotificationOverdue,
	} {
		msg, err := templates.Render(typ, TemplateData{Title: "Banner"})
		if err != nil {
			t.Fatalf("render %s: %v", typ, err)
		}
		if msg.Title == "" || msg.Body == "" {
			t.Fatalf("%s rendered empty text: %+v", typ, msg)
		}
	}

	msg, err := templates.Render(domain.NotificationRejected, TemplateData{Title: "Banner", Reason: "off brand"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Title != "Rejected: Banner" || !strings.Contains(msg.Body, "Reason: off brand") {
		t.Fatalf("unexpected rejection text %+v", msg)
	}

	msg, err = templates.Render(domain.NotificationCompleted, TemplateData{Title: "Banner", Late: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.Body, "after its deadline") {
		t.Fatalf("late completion should be mentioned, got %q", msg.Body)
	}
}

func TestParseTemplatesRejectsBadSyntax(t *testing.T) {
	if _, err := ParseTemplates([]byte("approved:\n  title: \"{{.Title\"\n  body: x\n")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseTemplates([]byte("- not a map")); err == nil {
		t.Fatal("expected yaml error")
	}
}
