package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/events"
	"github.com/spec-kit/request-desk/internal/observability"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// DefaultMaxRejectionReason bounds the rejection reason length in characters.
const DefaultMaxRejectionReason = 2000

// WorkflowService drives tickets through their lifecycle.
type WorkflowService struct {
	store      repository.Store
	recorder   *ActivityRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	maxReason  int
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	Store              repository.Store
	Recorder           *ActivityRecorder
	Dispatcher         events.Dispatcher
	Metrics            *observability.Metrics
	Logger             *zap.Logger
	Clock              func() time.Time
	MaxRejectionReason int
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	s := &WorkflowService{
		store:      deps.Store,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		maxReason:  deps.MaxRejectionReason,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.recorder == nil {
		s.recorder = NewActivityRecorder(s.logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxReason <= 0 {
		s.maxReason = DefaultMaxRejectionReason
	}
	return s
}

// change is what a guarded mutation reports back for the audit trail.
type change struct {
	action domain.Action
	detail string
}

type mutation func(ctx context.Context, tx repository.Store, t *domain.Ticket, now time.Time) (change, error)

// Approve moves a requested ticket to pending_creative or approved, or
// completes the second approval stage of a pending_creative ticket.
func (s *WorkflowService) Approve(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, "approve", func(_ context.Context, _ repository.Store, t *domain.Ticket, now time.Time) (change, error) {
		action := domain.ApprovalAction(t.Status)
		if !domain.CanTransition(action, t) {
			return change{}, invalidTransition("approve", t)
		}

		switch action {
		case domain.ActionFinalApproved:
			if actor.Role != domain.RoleAdmin && !actor.Is(t.FinalApproverID) {
				return change{}, apperrors.NewForbidden("only the final approver may approve this stage")
			}
			markApproved(t, now)
		default:
			if !canApproveFirstStage(actor, t) {
				return change{}, apperrors.NewForbidden("not allowed to approve tickets of this department")
			}
			if t.ApproverID == nil {
				approver := actor.UserID
				t.ApproverID = &approver
			}
			if t.HasSecondStage() {
				approvedAt := now
				t.ApprovedAt = &approvedAt
				t.Status = domain.TicketStatusPendingCreative
			} else {
				markApproved(t, now)
			}
		}
		return change{action: action, detail: fmt.Sprintf("status -> %s", t.Status)}, nil
	})
}

// Reject terminates a ticket awaiting approval. The reason is optional.
func (s *WorkflowService) Reject(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > s.maxReason {
		return nil, apperrors.NewValidationError("rejection reason too long", map[string]any{"max_length": s.maxReason})
	}

	return s.transition(ctx, actor, ticketID, "reject", func(_ context.Context, _ repository.Store, t *domain.Ticket, _ time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionRejected, t) {
			return change{}, invalidTransition("reject", t)
		}
		allowed := canApproveFirstStage(actor, t)
		if t.Status == domain.TicketStatusPendingCreative && actor.Is(t.FinalApproverID) {
			allowed = true
		}
		if !allowed {
			return change{}, apperrors.NewForbidden("not allowed to reject this ticket")
		}
		t.Status = domain.TicketStatusRejected
		t.RejectionReason = reason
		return change{action: domain.ActionRejected, detail: reason}, nil
	})
}

// Assign hands an approved ticket to an active, approved user. Reassigning
// before work starts is allowed; the status does not change.
func (s *WorkflowService) Assign(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return nil, apperrors.NewValidationError("assignee_id required", nil)
	}

	return s.transition(ctx, actor, ticketID, "assign", func(ctx context.Context, tx repository.Store, t *domain.Ticket, now time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionAssigned, t) {
			return change{}, invalidTransition("assign", t)
		}
		if !domain.CanAssign(actor.Role) || !actor.ManagesDepartment(t.DepartmentID) {
			return change{}, apperrors.NewForbidden("not allowed to assign tickets of this department")
		}
		assignee, err := tx.Users().GetByID(ctx, assigneeID)
		if err != nil {
			return change{}, mapRepoError(err, "user", assigneeID)
		}
		if !assignee.CanReceiveWork() {
			return change{}, apperrors.NewValidationError("assignee must be active and approved", map[string]any{"assignee_id": assigneeID})
		}
		id := assignee.ID
		assignedAt := now
		t.AssigneeID = &id
		t.AssignedAt = &assignedAt
		return change{action: domain.ActionAssigned, detail: "assignee -> " + assignee.ID}, nil
	})
}

// Start marks an assigned ticket as in progress. Only the assignee may start.
func (s *WorkflowService) Start(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, "start", func(_ context.Context, _ repository.Store, t *domain.Ticket, now time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionStarted, t) || t.AssigneeID == nil {
			return change{}, invalidTransition("start", t)
		}
		if !actor.Is(t.AssigneeID) {
			return change{}, apperrors.NewForbidden("only the assignee may start work")
		}
		startedAt := now
		t.Status = domain.TicketStatusInProgress
		t.StartedAt = &startedAt
		return change{action: domain.ActionStarted}, nil
	})
}

// Complete finishes work and records whether the deadline was missed.
func (s *WorkflowService) Complete(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, "complete", func(_ context.Context, _ repository.Store, t *domain.Ticket, now time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionCompleted, t) {
			return change{}, invalidTransition("complete", t)
		}
		if !actor.Is(t.AssigneeID) && !actor.ManagesDepartment(t.DepartmentID) {
			return change{}, apperrors.NewForbidden("only the assignee or a manager may complete work")
		}
		completedAt := now
		t.Status = domain.TicketStatusCompleted
		t.CompletedAt = &completedAt
		t.CompletedLate = t.Deadline != nil && now.After(*t.Deadline)
		detail := ""
		if t.CompletedLate {
			detail = "completed after deadline"
		}
		return change{action: domain.ActionCompleted, detail: detail}, nil
	})
}

// Confirm lets the requester accept completed work. Confirmed tickets are terminal.
func (s *WorkflowService) Confirm(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, ticketID, "confirm", func(_ context.Context, _ repository.Store, t *domain.Ticket, now time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionConfirmed, t) {
			return change{}, invalidTransition("confirm", t)
		}
		if actor.UserID != t.RequesterID {
			return change{}, apperrors.NewForbidden("only the requester may confirm")
		}
		confirmedAt := now
		t.ConfirmedByRequester = true
		t.ConfirmedAt = &confirmedAt
		return change{action: domain.ActionConfirmed}, nil
	})
}

// RequestRevision sends completed, unconfirmed work back to the assignee.
func (s *WorkflowService) RequestRevision(ctx context.Context, actor domain.Actor, ticketID, note string) (*domain.Ticket, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > s.maxReason {
		return nil, apperrors.NewValidationError("revision note too long", map[string]any{"max_length": s.maxReason})
	}

	return s.transition(ctx, actor, ticketID, "request revision for", func(_ context.Context, _ repository.Store, t *domain.Ticket, _ time.Time) (change, error) {
		if !domain.CanTransition(domain.ActionRevisionRequested, t) {
			return change{}, invalidTransition("request revision for", t)
		}
		if actor.UserID != t.RequesterID {
			return change{}, apperrors.NewForbidden("only the requester may request a revision")
		}
		t.Status = domain.TicketStatusInProgress
		t.CompletedAt = nil
		t.CompletedLate = false
		t.RevisionCount++
		return change{action: domain.ActionRevisionRequested, detail: note}, nil
	})
}

// Rollback restores the business fields captured by one of the ticket's
// activity entries.
func (s *WorkflowService) Rollback(ctx context.Context, actor domain.Actor, ticketID, entryID string) (*domain.Ticket, error) {
	if !domain.CanRollback(actor.Role) {
		return nil, apperrors.NewForbidden("only admins may roll back tickets")
	}

	return s.transition(ctx, actor, ticketID, "roll back", func(ctx context.Context, tx repository.Store, t *domain.Ticket, _ time.Time) (change, error) {
		entry, err := tx.Activity().GetByID(ctx, entryID)
		if err != nil {
			return change{}, mapRepoError(err, "activity_entry", entryID)
		}
		if entry.TicketID != t.ID {
			return change{}, apperrors.NewValidationError("activity entry belongs to another ticket", map[string]any{"entry_id": entryID})
		}
		revisions := t.RevisionCount
		if err := entry.Snapshot.ApplyTo(t); err != nil {
			return change{}, apperrors.NewValidationError("snapshot cannot be restored", map[string]any{"entry_id": entryID, "reason": err.Error()})
		}
		t.RevisionCount = max(revisions, t.RevisionCount) + 1
		return change{action: domain.ActionRolledBack, detail: "restored from " + entryID}, nil
	})
}

// transition runs mutate against a locked copy of the ticket inside one
// transaction, then publishes events once the transaction has committed.
func (s *WorkflowService) transition(ctx context.Context, actor domain.Actor, ticketID, verb string, mutate mutation) (*domain.Ticket, error) {
	var (
		result *domain.Ticket
		from   domain.TicketStatus
		done   change
	)
	now := s.now()

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return mapRepoError(err, "ticket", ticketID)
		}
		if current.IsDeleted {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		from = current.Status

		next := current.Clone()
		done, err = mutate(ctx, tx, next, now)
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return apperrors.NewInternalError(fmt.Errorf("%s produced invalid ticket: %w", verb, err))
		}
		if err := tx.Tickets().Update(ctx, next, from); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.NewInvalidTransition(verb, string(from))
			}
			return apperrors.MapError(err)
		}

		// Audit failures are logged by the recorder and never undo the transition.
		_, _ = s.recorder.Record(ctx, tx, &actor, next, done.action, done.detail)
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(done.action))
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", result.ID),
		zap.String("action", string(done.action)),
		zap.String("from", string(from)),
		zap.String("to", string(result.Status)),
		zap.String("actor_id", actor.UserID))

	s.publish(ctx, actor, events.EventTicketTransitioned, result.ID, events.TicketTransitionedPayload{
		Action:     done.action,
		FromStatus: from,
		ToStatus:   result.Status,
		Detail:     done.detail,
		Ticket:     result.Clone(),
	})
	s.publish(ctx, actor, events.EventCacheInvalidate, result.ID, events.CacheInvalidatePayload{Reason: string(done.action)})
	return result, nil
}

func (s *WorkflowService) publish(ctx context.Context, actor domain.Actor, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.now(),
		Payload:   payload,
	})
}

// canApproveFirstStage admits department and product managers, and the
// approver named on the ticket unless that is the requester.
func canApproveFirstStage(actor domain.Actor, t *domain.Ticket) bool {
	if !domain.CanApprove(actor.Role) {
		return false
	}
	if actor.ManagesDepartment(t.DepartmentID) || actor.ManagesProduct(t.ProductID) {
		return true
	}
	return actor.Is(t.ApproverID) && actor.UserID != t.RequesterID
}

func markApproved(t *domain.Ticket, now time.Time) {
	approvedAt := now
	deadline := domain.ComputeDeadline(t.Priority, t.WorkType, now)
	t.Status = domain.TicketStatusApproved
	t.ApprovedAt = &approvedAt
	t.Deadline = &deadline
}

func invalidTransition(verb string, t *domain.Ticket) error {
	status := string(t.Status)
	if t.ConfirmedByRequester {
		status = "confirmed"
	}
	return apperrors.NewInvalidTransition(verb, status)
}
