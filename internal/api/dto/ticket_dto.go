package dto

import (
	"time"

	"github.com/spec-kit/request-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	DepartmentID string                `json:"department_id" validate:"required"`
	ProductID    *string               `json:"product_id"`
	ApproverID   *string               `json:"approver_id"`
	Title        string                `json:"title" validate:"required,max=255"`
	Description  string                `json:"description" validate:"max=20000"`
	Priority     domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	WorkType     domain.WorkType       `json:"work_type" validate:"omitempty,oneof=video image text design other"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID                   string                `json:"id"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	RequesterID          string                `json:"requester_id"`
	AssigneeID           *string               `json:"assignee_id"`
	DepartmentID         string                `json:"department_id"`
	ProductID            *string               `json:"product_id"`
	ApproverID           *string               `json:"approver_id"`
	FinalApproverID      *string               `json:"final_approver_id"`
	Status               domain.TicketStatus   `json:"status"`
	Priority             domain.TicketPriority `json:"priority"`
	WorkType             domain.WorkType       `json:"work_type"`
	Deadline             *time.Time            `json:"deadline"`
	ApprovedAt           *time.Time            `json:"approved_at"`
	AssignedAt           *time.Time            `json:"assigned_at"`
	StartedAt            *time.Time            `json:"started_at"`
	CompletedAt          *time.Time            `json:"completed_at"`
	ConfirmedAt          *time.Time            `json:"confirmed_at"`
	ConfirmedByRequester bool                  `json:"confirmed_by_requester"`
	CompletedLate        bool                  `json:"completed_late"`
	RejectionReason      string                `json:"rejection_reason,omitempty"`
	RevisionCount        int                   `json:"revision_count"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID        string                `json:"id"`
	ActorID   *string               `json:"actor_id"`
	Action    domain.Action         `json:"action"`
	Detail    string                `json:"detail,omitempty"`
	Snapshot  domain.TicketSnapshot `json:"snapshot"`
	CreatedAt time.Time             `json:"created_at"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string  `json:"body" validate:"required,max=10000"`
	ParentID *string `json:"parent_id"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	ParentID  *string   `json:"parent_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AddCollaboratorRequest payload.
type AddCollaboratorRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CollaboratorResponse describes a ticket collaborator.
type CollaboratorResponse struct {
	UserID    string    `json:"user_id"`
	AddedByID string    `json:"added_by_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key" validate:"required"`
	FileName   string `json:"file_name" validate:"required,max=255"`
	MimeType   string `json:"mime_type" validate:"max=127"`
	SizeBytes  int64  `json:"size_bytes" validate:"gte=0"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           string    `json:"id"`
	UploadedByID string    `json:"uploaded_by_id"`
	StorageKey   string    `json:"storage_key"`
	FileName     string    `json:"file_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
