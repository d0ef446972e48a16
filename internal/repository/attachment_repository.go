package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/request-desk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	db DBTX
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO attachments (id, ticket_id, uploaded_by_id, storage_key, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.UploadedByID,
		attachment.StorageKey,
		attachment.FileName,
		attachment.MimeType,
		attachment.SizeBytes,
	).Scan(&attachment.CreatedAt)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, uploaded_by_id, storage_key, file_name, mime_type, size_bytes, created_at
        FROM attachments WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.UploadedByID,
			&attachment.StorageKey,
			&attachment.FileName,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
