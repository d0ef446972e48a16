package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/request-desk/internal/domain"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.NotificationRecord) error
	UpdateSent(ctx context.Context, id string, flags domain.ChannelFlags) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.NotificationRecord, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
}

type notificationRepository struct {
	db DBTX
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.NotificationRecord) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO notifications (id, recipient_id, ticket_id, type, title, message, sent_in_app)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		n.ID,
		n.RecipientID,
		n.TicketID,
		n.Type,
		n.Title,
		n.Message,
		n.Sent.InApp,
	).Scan(&n.CreatedAt)
}

func (r *notificationRepository) UpdateSent(ctx context.Context, id string, flags domain.ChannelFlags) error {
	const query = `
        UPDATE notifications SET sent_in_app=$2, sent_group=$3, sent_direct=$4, sent_email=$5
        WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id, flags.InApp, flags.Group, flags.Direct, flags.Email)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, recipient_id, ticket_id, type, title, message, is_read,
               sent_in_app, sent_group, sent_direct, sent_email, created_at, read_at
        FROM notifications WHERE recipient_id=$1`
	if unreadOnly {
		query += ` AND is_read=FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NotificationRecord
	for rows.Next() {
		var n domain.NotificationRecord
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.TicketID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.IsRead,
			&n.Sent.InApp,
			&n.Sent.Group,
			&n.Sent.Direct,
			&n.Sent.Email,
			&n.CreatedAt,
			&n.ReadAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	const query = `
        UPDATE notifications SET is_read=TRUE, read_at=COALESCE(read_at, $3)
        WHERE id=$1 AND recipient_id=$2`
	cmd, err := r.db.Exec(ctx, query, id, recipientID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
