package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/events"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/repository/memstore"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // Monday

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store      *memstore.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clock      *clock
	tickets    *TicketService
	workflow   *WorkflowService

	requester domain.Actor
	manager   domain.Actor
	outsider  domain.Actor
	designer  domain.Actor
	admin     domain.Actor
	finalizer domain.Actor
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

// newFixture seeds two departments. d2 requires a final approval by "fin".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	f := &fixture{
		store:      memstore.New(),
		dispatcher: events.NewInMemoryDispatcher(logger),
		metrics:    observability.NewMetrics(),
		clock:      &clock{now: baseTime},
	}

	d1, d2 := "d1", "d2"
	for _, u := range []*domain.User{
		{ID: "req", Name: "Rita", Email: "rita@example.com", Role: domain.RoleMember, DepartmentID: &d1, IsActive: true, IsApproved: true},
		{ID: "mgr", Name: "Milo", Email: "milo@example.com", Role: domain.RoleManager, DepartmentID: &d1, TelegramChatID: int64Ptr(100), IsActive: true, IsApproved: true, EmailNotifications: true},
		{ID: "mgr2", Name: "Nora", Role: domain.RoleManager, DepartmentID: &d2, IsActive: true, IsApproved: true},
		{ID: "dsg", Name: "Dana", Role: domain.RoleMember, DepartmentID: &d1, TelegramChatID: int64Ptr(200), IsActive: true, IsApproved: true},
		{ID: "idle", Name: "Ivan", Role: domain.RoleMember, DepartmentID: &d1, IsActive: true, IsApproved: false},
		{ID: "adm", Name: "Ada", Role: domain.RoleAdmin, IsActive: true, IsApproved: true},
		{ID: "fin", Name: "Finn", Role: domain.RoleManager, DepartmentID: &d1, IsActive: true, IsApproved: true},
	} {
		if err := f.store.Users().Create(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	for _, d := range []*domain.Department{
		{ID: d1, Name: "Marketing", IsActive: true},
		{ID: d2, Name: "Product", IsActive: true, FinalApproverID: strPtr("fin")},
	} {
		if err := f.store.Departments().Create(ctx, d); err != nil {
			t.Fatalf("seed department %s: %v", d.ID, err)
		}
	}

	f.requester = f.actor(t, "req")
	f.manager = f.actor(t, "mgr")
	f.outsider = f.actor(t, "mgr2")
	f.designer = f.actor(t, "dsg")
	f.admin = f.actor(t, "adm")
	f.finalizer = f.actor(t, "fin")

	recorder := NewActivityRecorder(logger)
	f.tickets = NewTicketService(TicketDependencies{
		Store:      f.store,
		Recorder:   recorder,
		Dispatcher: f.dispatcher,
		Logger:     logger,
		Clock:      f.clock.Now,
	})
	f.workflow = NewWorkflowService(WorkflowDependencies{
		Store:      f.store,
		Recorder:   recorder,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
		Logger:     logger,
		Clock:      f.clock.Now,
	})
	return f
}

func (f *fixture) actor(t *testing.T, id string) domain.Actor {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user %s: %v", id, err)
	}
	return domain.ActorFromUser(u)
}

func (f *fixture) createTicket(t *testing.T, departmentID string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		DepartmentID: departmentID,
		Title:        "Spring campaign banner",
		Priority:     priority,
		WorkType:     domain.WorkTypeImage,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (f *fixture) stored(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load ticket %s: %v", id, err)
	}
	return ticket
}

// mutate edits a stored ticket directly, bypassing the workflow guards.
func (f *fixture) mutate(t *testing.T, id string, edit func(*domain.Ticket)) {
	t.Helper()
	ticket := f.stored(t, id)
	edit(ticket)
	if err := f.store.Tickets().Update(context.Background(), ticket, ticket.Status); err != nil {
		t.Fatalf("update ticket %s: %v", id, err)
	}
}

func (f *fixture) history(t *testing.T, id string) []domain.ActivityLogEntry {
	t.Helper()
	entries, err := f.store.Activity().ListByTicket(context.Background(), id)
	if err != nil {
		t.Fatalf("load history %s: %v", id, err)
	}
	return entries
}

func mustSucceed(t *testing.T, step string, ticket *domain.Ticket, err error) *domain.Ticket {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", step, err)
	}
	return ticket
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

type fakeGroup struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (g *fakeGroup) SendGroupMessage(_ context.Context, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.messages = append(g.messages, text)
	return nil
}

type fakeDirect struct {
	mu    sync.Mutex
	sent  map[int64][]string
	panic bool
	block bool
}

func (d *fakeDirect) SendDirectMessage(ctx context.Context, chatID int64, text string) error {
	if d.panic {
		panic("telegram client exploded")
	}
	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sent == nil {
		d.sent = map[int64][]string{}
	}
	d.sent[chatID] = append(d.sent[chatID], text)
	return nil
}

type fakeEmail struct {
	mu         sync.Mutex
	recipients []string
	err        error
}

func (e *fakeEmail) SendEmail(_ context.Context, to, _, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.recipients = append(e.recipients, to)
	return nil
}

// recordingNotifier captures notify requests instead of delivering them.
type recordingNotifier struct {
	mu       sync.Mutex
	requests []NotifyRequest
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, req NotifyRequest) (domain.DispatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return domain.DispatchResult{Type: req.Type}, r.err
	}
	return domain.DispatchResult{
		Type:     req.Type,
		Outcomes: []domain.ChannelOutcome{{Channel: domain.ChannelInApp, Status: domain.OutcomeSent}},
	}, nil
}

func (r *recordingNotifier) recipients(typ domain.NotificationType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, req := range r.requests {
		if req.Type != typ {
			continue
		}
		if req.Recipient == nil {
			ids = append(ids, "")
			continue
		}
		ids = append(ids, req.Recipient.ID)
	}
	return ids
}

var errBoom = errors.New("boom")
