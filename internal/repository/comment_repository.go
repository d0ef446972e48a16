package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-desk/internal/domain"
)

// CommentRepository stores ticket discussion threads.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	GetByID(ctx context.Context, id string) (*domain.TicketComment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error)
}

// CollaboratorRepository tracks users attached to a ticket.
type CollaboratorRepository interface {
	Add(ctx context.Context, collaborator *domain.TicketCollaborator) error
	Remove(ctx context.Context, ticketID, userID string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketCollaborator, error)
}

type commentRepository struct {
	db DBTX
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_comments (id, ticket_id, author_id, parent_id, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.AuthorID,
		comment.ParentID,
		comment.Body,
	).Scan(&comment.CreatedAt)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, author_id, parent_id, body, created_at
        FROM ticket_comments WHERE id=$1`
	comment, err := scanComment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return comment, nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, author_id, parent_id, body, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func scanComment(row pgx.Row) (*domain.TicketComment, error) {
	var comment domain.TicketComment
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.ParentID,
		&comment.Body,
		&comment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}

type collaboratorRepository struct {
	db DBTX
}

func (r *collaboratorRepository) Add(ctx context.Context, collaborator *domain.TicketCollaborator) error {
	const query = `
        INSERT INTO ticket_collaborators (ticket_id, user_id, added_by_id)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		collaborator.TicketID,
		collaborator.UserID,
		collaborator.AddedByID,
	).Scan(&collaborator.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *collaboratorRepository) Remove(ctx context.Context, ticketID, userID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_collaborators WHERE ticket_id=$1 AND user_id=$2`, ticketID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *collaboratorRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketCollaborator, error) {
	const query = `
        SELECT ticket_id, user_id, added_by_id, created_at
        FROM ticket_collaborators WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketCollaborator
	for rows.Next() {
		var c domain.TicketCollaborator
		if err := rows.Scan(&c.TicketID, &c.UserID, &c.AddedByID, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
