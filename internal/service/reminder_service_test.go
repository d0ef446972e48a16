package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

type stubLocker struct {
	ok       bool
	err      error
	released bool
}

func (l *stubLocker) Acquire(context.Context) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, l.ok, l.err
	}
	return func() { l.released = true }, true, nil
}

func newReminders(f *fixture, notifier Notifier, locker ScanLocker) *ReminderService {
	deps := ReminderDependencies{
		Store:       f.store,
		Notifier:    notifier,
		Metrics:     f.metrics,
		Logger:      zap.NewNop(),
		Concurrency: 4,
	}
	if locker != nil {
		deps.Locker = locker
	}
	return NewReminderService(deps)
}

func TestReminderScanRemindsOncePerCooldown(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	reminders := newReminders(f, notifier, nil)
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	ctx := context.Background()
	now := baseTime.Add(time.Hour)

	count, err := reminders.RunReminderScan(ctx, now, 4*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected one ticket reminded, got %d", count)
	}
	if got := notifier.recipients(domain.NotificationReminder); !slices.Equal(got, []string{"fin", "mgr"}) {
		t.Fatalf("unassigned request should chase department managers, got %v", got)
	}

	count, err = reminders.RunReminderScan(ctx, now.Add(time.Hour), 4*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("cooldown should suppress a second reminder, got %d", count)
	}

	count, err = reminders.RunReminderScan(ctx, now.Add(5*time.Hour), 4*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected a reminder after the cooldown, got %d", count)
	}
	if got := f.stored(t, ticket.ID).LastReminderAt; got == nil || !got.Equal(now.Add(5*time.Hour)) {
		t.Fatalf("last reminder should be stamped with the scan time, got %v", got)
	}
}

func TestOverlappingScansRemindOnce(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	for range 5 {
		f.createTicket(t, "d1", domain.TicketPriorityMedium)
	}
	now := baseTime.Add(time.Hour)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := newReminders(f, notifier, nil).RunReminderScan(context.Background(), now, time.Hour, nil)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			total += count
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 5 {
		t.Fatalf("every ticket should be reminded exactly once, got %d", total)
	}
	if got := len(notifier.recipients(domain.NotificationReminder)); got != 10 {
		t.Fatalf("expected two managers per ticket, got %d notifications", got)
	}
}

func TestReminderScanTargetsWhoIsWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	assigned := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	if _, err := f.workflow.Approve(ctx, f.manager, assigned.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.workflow.Assign(ctx, f.manager, assigned.ID, "dsg"); err != nil {
		t.Fatal(err)
	}

	pending := f.createTicket(t, "d2", domain.TicketPriorityMedium)
	if _, err := f.workflow.Approve(ctx, f.outsider, pending.ID); err != nil {
		t.Fatal(err)
	}

	count, err := newReminders(f, notifier, nil).RunReminderScan(ctx, baseTime.Add(time.Hour), time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected two reminders, got %d", count)
	}
	got := notifier.recipients(domain.NotificationReminder)
	slices.Sort(got)
	if !slices.Equal(got, []string{"dsg", "fin"}) {
		t.Fatalf("expected assignee and final approver, got %v", got)
	}
}

func TestReminderScanOverdueWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	reminders := newReminders(f, notifier, nil)

	ticket := f.createTicket(t, "d1", domain.TicketPriorityUrgent)
	if _, err := f.workflow.Approve(ctx, f.manager, ticket.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.workflow.Assign(ctx, f.manager, ticket.ID, "dsg"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.workflow.Start(ctx, f.designer, ticket.ID); err != nil {
		t.Fatal(err)
	}

	// In-progress work inside its deadline is left alone.
	count, err := reminders.RunReminderScan(ctx, baseTime.Add(time.Hour), time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("on-time work should not be chased, got %d", count)
	}

	count, err = reminders.RunReminderScan(ctx, baseTime.Add(3*time.Hour), time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected overdue reminder, got %d", count)
	}
	got := notifier.recipients(domain.NotificationOverdue)
	if !slices.Equal(got, []string{"dsg", "fin", "mgr"}) {
		t.Fatalf("overdue work should reach assignee and managers, got %v", got)
	}
	if len(notifier.recipients(domain.NotificationReminder)) != 0 {
		t.Fatal("overdue tickets should not get the plain reminder")
	}
}

func TestReminderScanSkipsTerminalTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	rejected := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	if _, err := f.workflow.Reject(ctx, f.manager, rejected.ID, ""); err != nil {
		t.Fatal(err)
	}
	deleted := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	if err := f.tickets.SoftDelete(ctx, f.admin, deleted.ID); err != nil {
		t.Fatal(err)
	}

	count, err := newReminders(f, notifier, nil).RunReminderScan(ctx, baseTime.Add(time.Hour), time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 || len(notifier.requests) != 0 {
		t.Fatalf("nothing should be reminded, got %d (%d notifications)", count, len(notifier.requests))
	}
}

// shiftingStore runs afterList once the candidate list has been read, so a
// test can change tickets before they are claimed.
type shiftingStore struct {
	repository.Store
	afterList func()
}

func (s shiftingStore) Tickets() repository.TicketRepository {
	return shiftingTickets{TicketRepository: s.Store.Tickets(), afterList: s.afterList}
}

type shiftingTickets struct {
	repository.TicketRepository
	afterList func()
}

func (r shiftingTickets) ListReminderCandidates(ctx context.Context, statuses []domain.TicketStatus, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	list, err := r.TicketRepository.ListReminderCandidates(ctx, statuses, cutoff, limit)
	r.afterList()
	return list, err
}

func TestReminderScanUsesTicketStateAtClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	rejected := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	assigned := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	if _, err := f.workflow.Approve(ctx, f.manager, assigned.ID); err != nil {
		t.Fatal(err)
	}

	reminders := NewReminderService(ReminderDependencies{
		Store: shiftingStore{Store: f.store, afterList: func() {
			if _, err := f.workflow.Reject(ctx, f.manager, rejected.ID, "duplicate"); err != nil {
				t.Errorf("reject: %v", err)
			}
			if _, err := f.workflow.Assign(ctx, f.manager, assigned.ID, "dsg"); err != nil {
				t.Errorf("assign: %v", err)
			}
		}},
		Notifier:    notifier,
		Metrics:     f.metrics,
		Logger:      zap.NewNop(),
		Concurrency: 1,
	})

	count, err := reminders.RunReminderScan(ctx, baseTime.Add(time.Hour), 4*time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("only the still open ticket should be reminded, got %d", count)
	}
	if got := notifier.recipients(domain.NotificationReminder); !slices.Equal(got, []string{"dsg"}) {
		t.Fatalf("reminder should follow the fresh assignee, got %v", got)
	}
	if f.stored(t, rejected.ID).LastReminderAt != nil {
		t.Fatal("a ticket rejected before its claim must not be stamped")
	}
}

func TestReminderScanRespectsWindow(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	window := &ActiveWindow{StartHour: 9, EndHour: 18, Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}}

	saturday := time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC)
	count, err := newReminders(f, notifier, nil).RunReminderScan(context.Background(), saturday, time.Hour, window)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("no reminders on weekends, got %d", count)
	}
	if f.stored(t, ticket.ID).LastReminderAt != nil {
		t.Fatal("a scan outside the window must not claim tickets")
	}

	count, err = newReminders(f, notifier, nil).RunReminderScan(context.Background(), baseTime, time.Hour, window)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected a reminder inside the window, got %d", count)
	}
}

func TestReminderScanLocking(t *testing.T) {
	f := newFixture(t)
	f.createTicket(t, "d1", domain.TicketPriorityMedium)
	now := baseTime.Add(time.Hour)

	held := &stubLocker{ok: false}
	count, err := newReminders(f, &recordingNotifier{}, held).RunReminderScan(context.Background(), now, time.Hour, nil)
	if err != nil || count != 0 {
		t.Fatalf("a held lock should skip the scan, got %d %v", count, err)
	}

	broken := &stubLocker{err: errors.New("redis down")}
	count, err = newReminders(f, &recordingNotifier{}, broken).RunReminderScan(context.Background(), now, time.Hour, nil)
	if err != nil || count != 1 {
		t.Fatalf("lock errors should fall back to per-ticket claims, got %d %v", count, err)
	}

	free := &stubLocker{ok: true}
	if _, err := newReminders(f, &recordingNotifier{}, free).RunReminderScan(context.Background(), now.Add(2*time.Hour), time.Hour, nil); err != nil {
		t.Fatal(err)
	}
	if !free.released {
		t.Fatal("lock should be released after the scan")
	}
}

func TestReminderScanNotifierFailure(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	count, err := newReminders(f, &recordingNotifier{err: errBoom}, nil).RunReminderScan(context.Background(), baseTime, time.Hour, nil)
	if err != nil {
		t.Fatalf("notifier failures are per ticket, got %v", err)
	}
	if count != 0 {
		t.Fatalf("undelivered reminders should not count, got %d", count)
	}
	if f.stored(t, ticket.ID).LastReminderAt == nil {
		t.Fatal("the claim stays in place so a failing channel is not retried every scan")
	}
}

func TestReminderScanRejectsCooldown(t *testing.T) {
	f := newFixture(t)
	_, err := newReminders(f, &recordingNotifier{}, nil).RunReminderScan(context.Background(), baseTime, 0, nil)
	expectCode(t, err, apperrors.CodeValidation)
}

func TestActiveWindowContains(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	tests := []struct {
		name   string
		window *ActiveWindow
		at     time.Time
		want   bool
	}{
		{"nil window", nil, baseTime, true},
		{"all day", &ActiveWindow{StartHour: 0, EndHour: 0}, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), true},
		{"start inclusive", &ActiveWindow{StartHour: 9, EndHour: 18}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true},
		{"end exclusive", &ActiveWindow{StartHour: 9, EndHour: 18}, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), false},
		{"overnight late", &ActiveWindow{StartHour: 22, EndHour: 6}, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), true},
		{"overnight early", &ActiveWindow{StartHour: 22, EndHour: 6}, time.Date(2026, 3, 2, 5, 59, 0, 0, time.UTC), true},
		{"overnight midday", &ActiveWindow{StartHour: 22, EndHour: 6}, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), false},
		{"weekday allowed", &ActiveWindow{StartHour: 9, EndHour: 18, Weekdays: weekdays}, time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC), true},
		{"weekend blocked", &ActiveWindow{StartHour: 9, EndHour: 18, Weekdays: weekdays}, time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), false},
		{"location shifts hour", &ActiveWindow{StartHour: 9, EndHour: 18, Location: berlin}, time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC), true},
		{"location shifts weekday", &ActiveWindow{StartHour: 0, EndHour: 0, Weekdays: weekdays, Location: berlin}, time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
