package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-desk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID    *string
	AssigneeID     *string
	DepartmentID   *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	// Update writes the ticket only if its stored status still equals expected.
	Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListReminderCandidates(ctx context.Context, statuses []domain.TicketStatus, cutoff time.Time, limit int) ([]domain.Ticket, error)
	// ClaimReminder stamps last_reminder_at when the ticket is still open in
	// one of statuses and its cooldown has elapsed. It returns the current
	// row to the winner and nil to everyone else.
	ClaimReminder(ctx context.Context, id string, statuses []domain.TicketStatus, now, cutoff time.Time) (*domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

const ticketColumns = `id, title, description, requester_id, assignee_id, department_id, product_id,
        approver_id, final_approver_id, status, priority, work_type, deadline, approved_at, assigned_at,
        started_at, completed_at, confirmed_at, confirmed_by_requester, completed_late, rejection_reason,
        revision_count, last_reminder_at, is_deleted, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (id, title, description, requester_id, assignee_id, department_id, product_id,
            approver_id, final_approver_id, status, priority, work_type, deadline, revision_count)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.DepartmentID,
		ticket.ProductID,
		ticket.ApproverID,
		ticket.FinalApproverID,
		ticket.Status,
		ticket.Priority,
		ticket.WorkType,
		ticket.Deadline,
		ticket.RevisionCount,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, approver_id=$2, final_approver_id=$3, status=$4, priority=$5,
            work_type=$6, deadline=$7, approved_at=$8, assigned_at=$9, started_at=$10, completed_at=$11,
            confirmed_at=$12, confirmed_by_requester=$13, completed_late=$14, rejection_reason=$15,
            revision_count=$16, department_id=$17, product_id=$18, is_deleted=$19, updated_at=NOW()
        WHERE id=$20 AND status=$21
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.AssigneeID,
		ticket.ApproverID,
		ticket.FinalApproverID,
		ticket.Status,
		ticket.Priority,
		ticket.WorkType,
		ticket.Deadline,
		ticket.ApprovedAt,
		ticket.AssignedAt,
		ticket.StartedAt,
		ticket.CompletedAt,
		ticket.ConfirmedAt,
		ticket.ConfirmedByRequester,
		ticket.CompletedLate,
		ticket.RejectionReason,
		ticket.RevisionCount,
		ticket.DepartmentID,
		ticket.ProductID,
		ticket.IsDeleted,
		ticket.ID,
		expected,
	).Scan(&ticket.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "is_deleted=FALSE")
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListReminderCandidates(ctx context.Context, statuses []domain.TicketStatus, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE is_deleted=FALSE AND confirmed_by_requester=FALSE AND status = ANY($1)
          AND (last_reminder_at IS NULL OR last_reminder_at < $2)
        ORDER BY created_at ASC LIMIT $3`
	rows, err := r.db.Query(ctx, query, statusNames(statuses), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ClaimReminder(ctx context.Context, id string, statuses []domain.TicketStatus, now, cutoff time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET last_reminder_at=$2
        WHERE id=$1 AND is_deleted=FALSE AND confirmed_by_requester=FALSE AND status = ANY($4)
          AND (last_reminder_at IS NULL OR last_reminder_at < $3)
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id, now, cutoff, statusNames(statuses)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func statusNames(statuses []domain.TicketStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.DepartmentID,
		&ticket.ProductID,
		&ticket.ApproverID,
		&ticket.FinalApproverID,
		&ticket.Status,
		&ticket.Priority,
		&ticket.WorkType,
		&ticket.Deadline,
		&ticket.ApprovedAt,
		&ticket.AssignedAt,
		&ticket.StartedAt,
		&ticket.CompletedAt,
		&ticket.ConfirmedAt,
		&ticket.ConfirmedByRequester,
		&ticket.CompletedLate,
		&ticket.RejectionReason,
		&ticket.RevisionCount,
		&ticket.LastReminderAt,
		&ticket.IsDeleted,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
