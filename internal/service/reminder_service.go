package service

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// ActiveWindow restricts reminders to working hours on selected weekdays.
// StartHour == EndHour means the whole day; StartHour > EndHour wraps
// past midnight. An empty Weekdays list allows every day.
type ActiveWindow struct {
	StartHour int
	EndHour   int
	Weekdays  []time.Weekday
	Location  *time.Location
}

// Contains reports whether now falls inside the window.
func (w *ActiveWindow) Contains(now time.Time) bool {
	if w == nil {
		return true
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if len(w.Weekdays) > 0 && !slices.Contains(w.Weekdays, local.Weekday()) {
		return false
	}
	hour := local.Hour()
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour < w.EndHour:
		return hour >= w.StartHour && hour < w.EndHour
	default:
		return hour >= w.StartHour || hour < w.EndHour
	}
}

// ScanLocker guards against overlapping scans across processes.
type ScanLocker interface {
	// Acquire returns ok=false when another scan holds the lock.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// reminderStatuses are the states that wait on someone.
var reminderStatuses = []domain.TicketStatus{
	domain.TicketStatusRequested,
	domain.TicketStatusPendingCreative,
	domain.TicketStatusApproved,
	domain.TicketStatusInProgress,
	domain.TicketStatusCompleted,
}

// ReminderService nudges whoever a stalled ticket is waiting on.
type ReminderService struct {
	store       repository.Store
	notifier    Notifier
	locker      ScanLocker
	metrics     *observability.Metrics
	logger      *zap.Logger
	concurrency int
	batchSize   int
}

// ReminderDependencies bundles collaborators for the reminder scan.
type ReminderDependencies struct {
	Store       repository.Store
	Notifier    Notifier
	Locker      ScanLocker
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Concurrency int
	BatchSize   int
}

// NewReminderService constructs the service.
func NewReminderService(deps ReminderDependencies) *ReminderService {
	s := &ReminderService{
		store:       deps.Store,
		notifier:    deps.Notifier,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		concurrency: deps.Concurrency,
		batchSize:   deps.BatchSize,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.concurrency <= 0 {
		s.concurrency = 8
	}
	if s.batchSize <= 0 {
		s.batchSize = 500
	}
	return s
}

// RunReminderScan reminds every ticket that is waiting on someone and has
// not been reminded within cooldown. Each ticket is claimed with a single
// conditional update before anything is sent, so overlapping scans never
// remind the same ticket twice inside the cooldown. Returns the number of
// tickets reminded.
func (s *ReminderService) RunReminderScan(ctx context.Context, now time.Time, cooldown time.Duration, window *ActiveWindow) (int, error) {
	if cooldown <= 0 {
		return 0, apperrors.NewValidationError("cooldown must be positive", nil)
	}
	if !window.Contains(now) {
		s.logger.Debug("reminder scan outside active window", zap.Time("now", now))
		return 0, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn("scan lock unavailable; relying on per-ticket claims", zap.Error(err))
		case !ok:
			s.logger.Info("reminder scan already running elsewhere")
			return 0, nil
		default:
			defer release()
		}
	}

	cutoff := now.Add(-cooldown)
	candidates, err := s.store.Tickets().ListReminderCandidates(ctx, reminderStatuses, cutoff, s.batchSize)
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	var reminded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range candidates {
		ticket := &candidates[i]
		if !needsReminder(ticket, now) {
			continue
		}
		g.Go(func() error {
			sent, err := s.remind(gctx, ticket, now, cutoff)
			if err != nil {
				s.logger.Warn("reminder failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				return nil
			}
			if sent {
				reminded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	count := int(reminded.Load())
	s.metrics.RecordReminderScan(count)
	s.logger.Info("reminder scan finished", zap.Int("candidates", len(candidates)), zap.Int("reminded", count))
	return count, nil
}

// remind claims the ticket and notifies the people its current state waits
// on. No lock is held while sending.
func (s *ReminderService) remind(ctx context.Context, candidate *domain.Ticket, now, cutoff time.Time) (bool, error) {
	ticket, err := s.store.Tickets().ClaimReminder(ctx, candidate.ID, reminderStatuses, now, cutoff)
	if err != nil || ticket == nil {
		return false, err
	}
	// The ticket may have moved on since the candidate list was read.
	if !needsReminder(ticket, now) {
		return false, nil
	}

	recipients, err := resolveRecipients(ctx, s.store, ticket, waitingOn(ticket)...)
	if err != nil {
		return false, err
	}
	if len(recipients) == 0 {
		return false, nil
	}

	typ := domain.NotificationReminder
	if ticket.IsOverdue(now) {
		typ = domain.NotificationOverdue
	}

	delivered := false
	for i := range recipients {
		result, err := s.notifier.Notify(ctx, NotifyRequest{Recipient: &recipients[i], Type: typ, Ticket: ticket})
		if err != nil {
			s.logger.Warn("reminder notification failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("recipient_id", recipients[i].ID),
				zap.Error(err))
			continue
		}
		delivered = delivered || result.AnySent()
	}
	return delivered, nil
}

// needsReminder filters candidates down to the ones actually stalled.
// In-progress work is only chased once it is overdue.
func needsReminder(t *domain.Ticket, now time.Time) bool {
	if t.IsDeleted || t.IsTerminal() {
		return false
	}
	if t.Status == domain.TicketStatusInProgress {
		return t.IsOverdue(now)
	}
	return true
}

// waitingOn names who must act next for a ticket in its current state.
func waitingOn(t *domain.Ticket) []audience {
	switch t.Status {
	case domain.TicketStatusRequested:
		if t.ApproverID != nil {
			return []audience{audienceApprover}
		}
		return []audience{audienceManagers}
	case domain.TicketStatusPendingCreative:
		return []audience{audienceFinalApprover}
	case domain.TicketStatusApproved:
		if t.AssigneeID != nil {
			return []audience{audienceAssignee}
		}
		return []audience{audienceManagers}
	case domain.TicketStatusInProgress:
		return []audience{audienceAssignee, audienceManagers}
	case domain.TicketStatusCompleted:
		return []audience{audienceRequester}
	}
	return nil
}
