package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-desk/internal/domain"
)

// ActivityRepository stores append-only audit entries.
type ActivityRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
	GetByID(ctx context.Context, id string) (*domain.ActivityLogEntry, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ActivityLogEntry, error)
}

type activityRepository struct {
	db DBTX
}

func (r *activityRepository) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	const query = `
        INSERT INTO activity_log (id, ticket_id, actor_id, action, detail, snapshot, snapshot_version)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.Detail,
		snapshot,
		entry.Snapshot.Version,
	).Scan(&entry.CreatedAt)
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.ActivityLogEntry, error) {
	const query = `
        SELECT id, ticket_id, actor_id, action, detail, snapshot, created_at
        FROM activity_log WHERE id=$1`
	entry, err := scanActivity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return entry, nil
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ActivityLogEntry, error) {
	const query = `
        SELECT id, ticket_id, actor_id, action, detail, snapshot, created_at
        FROM activity_log WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityLogEntry
	for rows.Next() {
		entry, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func scanActivity(row pgx.Row) (*domain.ActivityLogEntry, error) {
	var (
		entry domain.ActivityLogEntry
		raw   []byte
	)
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.ActorID,
		&entry.Action,
		&entry.Detail,
		&raw,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &entry.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", entry.ID, err)
	}
	return &entry, nil
}
