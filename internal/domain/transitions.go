package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Action identifies a mutating operation recorded in the activity log.
type Action string

const (
	ActionCreated             Action = "created"
	ActionApproved            Action = "approved"
	ActionFinalApproved       Action = "final_approved"
	ActionRejected            Action = "rejected"
	ActionAssigned            Action = "assigned"
	ActionStarted             Action = "started"
	ActionCompleted           Action = "completed"
	ActionConfirmed           Action = "confirmed"
	ActionRevisionRequested   Action = "revision_requested"
	ActionRolledBack          Action = "rolled_back"
	ActionCommentAdded        Action = "comment_added"
	ActionCollaboratorAdded   Action = "collaborator_added"
	ActionCollaboratorRemoved Action = "collaborator_removed"
	ActionAttachmentAdded     Action = "attachment_added"
	ActionDeleted             Action = "deleted"
)

// transitionSources lists the statuses each status-changing action may start from.
var transitionSources = map[Action][]TicketStatus{
	ActionApproved:          {TicketStatusRequested},
	ActionFinalApproved:     {TicketStatusPendingCreative},
	ActionRejected:          {TicketStatusRequested, TicketStatusPendingCreative},
	ActionAssigned:          {TicketStatusApproved},
	ActionStarted:           {TicketStatusApproved},
	ActionCompleted:         {TicketStatusInProgress},
	ActionConfirmed:         {TicketStatusCompleted},
	ActionRevisionRequested: {TicketStatusCompleted},
}

// AllowedSources returns the statuses from which the action is valid.
func AllowedSources(action Action) []TicketStatus {
	return slices.Clone(transitionSources[action])
}

// ErrInvalidTransition marks an action attempted from a state that does not accept it.
var ErrInvalidTransition = errors.New("invalid transition")

// CheckSource returns ErrInvalidTransition unless the action may run on t.
// Confirmed tickets are terminal even though their status is completed.
func CheckSource(action Action, t *Ticket) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: %s on missing ticket", ErrInvalidTransition, action)
	case t.IsDeleted:
		return fmt.Errorf("%w: %s on deleted ticket", ErrInvalidTransition, action)
	case t.ConfirmedByRequester:
		return fmt.Errorf("%w: %s on confirmed ticket", ErrInvalidTransition, action)
	case !slices.Contains(transitionSources[action], t.Status):
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, t.Status)
	}
	return nil
}

// CanTransition reports whether the action may run on the ticket.
func CanTransition(action Action, t *Ticket) bool {
	return CheckSource(action, t) == nil
}

// ApprovalAction resolves which approval step applies to the ticket's current status.
func ApprovalAction(status TicketStatus) Action {
	if status == TicketStatusPendingCreative {
		return ActionFinalApproved
	}
	return ActionApproved
}
