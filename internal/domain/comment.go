package domain

import "time"

// TicketComment is a message in a ticket thread; ParentID links a reply.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	ParentID  *string
	Body      string
	CreatedAt time.Time
}

// TicketCollaborator grants a non-owning user visibility and notifications.
type TicketCollaborator struct {
	TicketID  string
	UserID    string
	AddedByID string
	CreatedAt time.Time
}

// Attachment stores metadata for a file kept in external storage.
type Attachment struct {
	ID           string
	TicketID     string
	UploadedByID string
	StorageKey   string
	FileName     string
	MimeType     string
	SizeBytes    int64
	CreatedAt    time.Time
}
