package domain

import (
	"fmt"
	"time"
)

// SnapshotVersion is bumped whenever TicketSnapshot gains or changes fields.
const SnapshotVersion = 1

// TicketSnapshot captures the business fields of a ticket at one point in time.
// The JSON layout is persisted in the activity log and read back by rollback.
type TicketSnapshot struct {
	Version              int            `json:"version"`
	Status               TicketStatus   `json:"status"`
	AssigneeID           *string        `json:"assignee_id"`
	ApproverID           *string        `json:"approver_id"`
	FinalApproverID      *string        `json:"final_approver_id"`
	Priority             TicketPriority `json:"priority"`
	WorkType             WorkType       `json:"work_type"`
	Deadline             *time.Time     `json:"deadline"`
	DepartmentID         string         `json:"department_id"`
	ProductID            *string        `json:"product_id"`
	RevisionCount        int            `json:"revision_count"`
	ApprovedAt           *time.Time     `json:"approved_at"`
	AssignedAt           *time.Time     `json:"assigned_at"`
	StartedAt            *time.Time     `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at"`
	ConfirmedAt          *time.Time     `json:"confirmed_at"`
	ConfirmedByRequester bool           `json:"confirmed_by_requester"`
	CompletedLate        bool           `json:"completed_late"`
	RejectionReason      string         `json:"rejection_reason,omitempty"`
}

// NewSnapshot deep-copies the business fields of t.
func NewSnapshot(t *Ticket) TicketSnapshot {
	c := t.Clone()
	return TicketSnapshot{
		Version:              SnapshotVersion,
		Status:               c.Status,
		AssigneeID:           c.AssigneeID,
		ApproverID:           c.ApproverID,
		FinalApproverID:      c.FinalApproverID,
		Priority:             c.Priority,
		WorkType:             c.WorkType,
		Deadline:             c.Deadline,
		DepartmentID:         c.DepartmentID,
		ProductID:            c.ProductID,
		RevisionCount:        c.RevisionCount,
		ApprovedAt:           c.ApprovedAt,
		AssignedAt:           c.AssignedAt,
		StartedAt:            c.StartedAt,
		CompletedAt:          c.CompletedAt,
		ConfirmedAt:          c.ConfirmedAt,
		ConfirmedByRequester: c.ConfirmedByRequester,
		CompletedLate:        c.CompletedLate,
		RejectionReason:      c.RejectionReason,
	}
}

// ApplyTo restores the captured fields onto t. Identity, requester, text
// fields and bookkeeping timestamps are left alone.
func (s TicketSnapshot) ApplyTo(t *Ticket) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if !s.Status.Valid() {
		return ErrUnknownStatus
	}
	c := &Ticket{
		AssigneeID:      s.AssigneeID,
		ApproverID:      s.ApproverID,
		FinalApproverID: s.FinalApproverID,
		ProductID:       s.ProductID,
		Deadline:        s.Deadline,
		ApprovedAt:      s.ApprovedAt,
		AssignedAt:      s.AssignedAt,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		ConfirmedAt:     s.ConfirmedAt,
	}
	c = c.Clone()
	t.Status = s.Status
	t.AssigneeID = c.AssigneeID
	t.ApproverID = c.ApproverID
	t.FinalApproverID = c.FinalApproverID
	t.Priority = s.Priority
	t.WorkType = s.WorkType
	t.Deadline = c.Deadline
	t.DepartmentID = s.DepartmentID
	t.ProductID = c.ProductID
	t.RevisionCount = s.RevisionCount
	t.ApprovedAt = c.ApprovedAt
	t.AssignedAt = c.AssignedAt
	t.StartedAt = c.StartedAt
	t.CompletedAt = c.CompletedAt
	t.ConfirmedAt = c.ConfirmedAt
	t.ConfirmedByRequester = s.ConfirmedByRequester
	t.CompletedLate = s.CompletedLate
	t.RejectionReason = s.RejectionReason
	return nil
}

// Clone deep-copies the pointer fields of the snapshot.
func (s TicketSnapshot) Clone() TicketSnapshot {
	c := s
	c.AssigneeID = cloneString(s.AssigneeID)
	c.ApproverID = cloneString(s.ApproverID)
	c.FinalApproverID = cloneString(s.FinalApproverID)
	c.ProductID = cloneString(s.ProductID)
	c.Deadline = cloneTime(s.Deadline)
	c.ApprovedAt = cloneTime(s.ApprovedAt)
	c.AssignedAt = cloneTime(s.AssignedAt)
	c.StartedAt = cloneTime(s.StartedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.ConfirmedAt = cloneTime(s.ConfirmedAt)
	return c
}

// ActivityLogEntry is an append-only audit record for one mutating action.
type ActivityLogEntry struct {
	ID        string
	TicketID  string
	ActorID   *string
	Action    Action
	Detail    string
	Snapshot  TicketSnapshot
	CreatedAt time.Time
}
