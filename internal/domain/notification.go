package domain

import "time"

// NotificationType selects the message template for a dispatch.
type NotificationType string

const (
	NotificationNewRequest            NotificationType = "new_request"
	NotificationAwaitingFinalApproval NotificationType = "awaiting_final_approval"
	NotificationApproved              NotificationType = "approved"
	NotificationRejected              NotificationType = "rejected"
	NotificationAssigned              NotificationType = "assigned"
	NotificationStarted               NotificationType = "started"
	NotificationCompleted             NotificationType = "completed"
	NotificationConfirmed             NotificationType = "confirmed"
	NotificationRevisionRequested     NotificationType = "revision_requested"
	NotificationRolledBack            NotificationType = "rolled_back"
	NotificationCommentAdded          NotificationType = "comment_added"
	NotificationReminder              NotificationType = "reminder"
	NotificationOverdue               NotificationType = "overdue"
)

// Channel names a delivery path of the dispatcher.
type Channel string

const (
	ChannelInApp  Channel = "in_app"
	ChannelGroup  Channel = "group"
	ChannelDirect Channel = "direct"
	ChannelEmail  Channel = "email"
)

// ChannelFlags records which channels delivered a notification.
type ChannelFlags struct {
	InApp  bool `json:"in_app"`
	Group  bool `json:"group"`
	Direct bool `json:"direct"`
	Email  bool `json:"email"`
}

// NotificationRecord is the in-app copy of a notification.
type NotificationRecord struct {
	ID          string
	RecipientID string
	TicketID    *string
	Type        NotificationType
	Title       string
	Message     string
	IsRead      bool
	Sent        ChannelFlags
	CreatedAt   time.Time
	ReadAt      *time.Time
}

// OutcomeStatus tags a ChannelOutcome.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ChannelOutcome is the result of one channel attempt.
type ChannelOutcome struct {
	Channel Channel       `json:"channel"`
	Status  OutcomeStatus `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Err     error         `json:"-"`
}

// DispatchResult aggregates the outcome of every channel for one notify call.
type DispatchResult struct {
	Type         NotificationType    `json:"type"`
	RecipientID  *string             `json:"recipient_id,omitempty"`
	Notification *NotificationRecord `json:"-"`
	Outcomes     []ChannelOutcome    `json:"outcomes"`
}

// Outcome returns the result for the given channel, if it was considered.
func (r DispatchResult) Outcome(ch Channel) (ChannelOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == ch {
			return o, true
		}
	}
	return ChannelOutcome{}, false
}

// Flags summarizes successful deliveries.
func (r DispatchResult) Flags() ChannelFlags {
	var f ChannelFlags
	for _, o := range r.Outcomes {
		if o.Status != OutcomeSent {
			continue
		}
		switch o.Channel {
		case ChannelInApp:
			f.InApp = true
		case ChannelGroup:
			f.Group = true
		case ChannelDirect:
			f.Direct = true
		case ChannelEmail:
			f.Email = true
		}
	}
	return f
}

// AnySent reports whether at least one channel delivered.
func (r DispatchResult) AnySent() bool {
	for _, o := range r.Outcomes {
		if o.Status == OutcomeSent {
			return true
		}
	}
	return false
}
