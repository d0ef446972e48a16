package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusRequested       TicketStatus = "requested"
	TicketStatusPendingCreative TicketStatus = "pending_creative"
	TicketStatusApproved        TicketStatus = "approved"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusCompleted       TicketStatus = "completed"
	TicketStatusRejected        TicketStatus = "rejected"
)

// Valid reports whether the status is one of the defined values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusRequested, TicketStatusPendingCreative, TicketStatusApproved,
		TicketStatusInProgress, TicketStatusCompleted, TicketStatusRejected:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is one of the defined values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// WorkType classifies the media or kind of work requested.
type WorkType string

const (
	WorkTypeVideo  WorkType = "video"
	WorkTypeImage  WorkType = "image"
	WorkTypeText   WorkType = "text"
	WorkTypeDesign WorkType = "design"
	WorkTypeOther  WorkType = "other"
)

// Valid reports whether the work type is one of the defined values.
func (w WorkType) Valid() bool {
	switch w {
	case WorkTypeVideo, WorkTypeImage, WorkTypeText, WorkTypeDesign, WorkTypeOther:
		return true
	}
	return false
}

// Ticket is the aggregate for departmental work requests.
type Ticket struct {
	ID                   string
	Title                string
	Description          string
	RequesterID          string
	AssigneeID           *string
	DepartmentID         string
	ProductID            *string
	ApproverID           *string
	FinalApproverID      *string
	Status               TicketStatus
	Priority             TicketPriority
	WorkType             WorkType
	Deadline             *time.Time
	ApprovedAt           *time.Time
	AssignedAt           *time.Time
	StartedAt            *time.Time
	CompletedAt          *time.Time
	ConfirmedAt          *time.Time
	ConfirmedByRequester bool
	CompletedLate        bool
	RejectionReason      string
	RevisionCount        int
	LastReminderAt       *time.Time
	IsDeleted            bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasSecondStage reports whether approval requires a final approver.
func (t *Ticket) HasSecondStage() bool {
	return t.FinalApproverID != nil && *t.FinalApproverID != ""
}

// IsTerminal reports whether no further transition is permitted.
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusRejected ||
		(t.Status == TicketStatusCompleted && t.ConfirmedByRequester)
}

// IsOverdue reports whether the deadline has passed before completion.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.Deadline == nil || t.Status == TicketStatusCompleted || t.Status == TicketStatusRejected {
		return false
	}
	return now.After(*t.Deadline)
}

// Clone returns a deep copy so snapshots and guards never share pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssigneeID = cloneString(t.AssigneeID)
	c.ProductID = cloneString(t.ProductID)
	c.ApproverID = cloneString(t.ApproverID)
	c.FinalApproverID = cloneString(t.FinalApproverID)
	c.Deadline = cloneTime(t.Deadline)
	c.ApprovedAt = cloneTime(t.ApprovedAt)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ConfirmedAt = cloneTime(t.ConfirmedAt)
	c.LastReminderAt = cloneTime(t.LastReminderAt)
	return &c
}

// Invariant violations reported by Validate.
var (
	ErrUnknownStatus          = errors.New("status is not a defined value")
	ErrUnknownPriority        = errors.New("priority is not a defined value")
	ErrAssigneeBeforeApproval = errors.New("assignee set before approval")
	ErrCompletedAtMismatch    = errors.New("completed_at must be set iff status is completed")
	ErrConfirmedNotComplete   = errors.New("confirmation requires completed status")
)

// Validate checks the structural invariants of a ticket.
func (t *Ticket) Validate() error {
	if !t.Status.Valid() {
		return ErrUnknownStatus
	}
	if !t.Priority.Valid() {
		return ErrUnknownPriority
	}
	if t.AssigneeID != nil && !t.Status.ReachedApproval() {
		return ErrAssigneeBeforeApproval
	}
	if (t.CompletedAt != nil) != (t.Status == TicketStatusCompleted) {
		return ErrCompletedAtMismatch
	}
	if t.ConfirmedByRequester && t.Status != TicketStatusCompleted {
		return ErrConfirmedNotComplete
	}
	return nil
}

// ReachedApproval reports whether the status is approved or later.
func (s TicketStatus) ReachedApproval() bool {
	switch s {
	case TicketStatusApproved, TicketStatusInProgress, TicketStatusCompleted:
		return true
	}
	return false
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
