package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
)

// ActivityRecorder appends audit entries inside the caller's transaction.
type ActivityRecorder struct {
	logger *zap.Logger
}

// NewActivityRecorder builds a recorder.
func NewActivityRecorder(logger *zap.Logger) *ActivityRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityRecorder{logger: logger}
}

// Record snapshots ticket as it is now and appends an entry for action.
// The insert runs in a savepoint of unit, so a failure only discards the
// entry; it is logged and returned but never rolls back the caller's work.
// A nil actor marks a system action.
func (r *ActivityRecorder) Record(ctx context.Context, unit repository.Store, actor *domain.Actor, ticket *domain.Ticket, action domain.Action, detail string) (*domain.ActivityLogEntry, error) {
	entry := &domain.ActivityLogEntry{
		TicketID: ticket.ID,
		Action:   action,
		Detail:   detail,
		Snapshot: domain.NewSnapshot(ticket),
	}
	if actor != nil {
		id := actor.UserID
		entry.ActorID = &id
	}

	err := unit.InTx(ctx, func(sp repository.Store) error {
		return sp.Activity().Append(ctx, entry)
	})
	if err != nil {
		r.logger.Error("activity entry dropped",
			zap.String("ticket_id", ticket.ID),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, err
	}
	return entry, nil
}
