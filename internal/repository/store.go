package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write loses against a
	// concurrent change or a unique constraint.
	ErrConflict = errors.New("record conflict")
)

// Store groups the repositories bound to one database session.
type Store interface {
	Tickets() TicketRepository
	Activity() ActivityRepository
	Users() UserRepository
	Departments() DepartmentRepository
	Comments() CommentRepository
	Collaborators() CollaboratorRepository
	Attachments() AttachmentRepository
	Notifications() NotificationRepository

	// InTx runs fn in a transaction. Calling InTx on a transactional
	// store opens a savepoint, so a failing fn only rolls back its own work.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	db DBTX
}

// NewStore builds a Postgres-backed store over a pool or transaction.
func NewStore(db DBTX) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Tickets() TicketRepository             { return &ticketRepository{db: s.db} }
func (s *pgStore) Activity() ActivityRepository          { return &activityRepository{db: s.db} }
func (s *pgStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *pgStore) Departments() DepartmentRepository     { return &departmentRepository{db: s.db} }
func (s *pgStore) Comments() CommentRepository           { return &commentRepository{db: s.db} }
func (s *pgStore) Collaborators() CollaboratorRepository { return &collaboratorRepository{db: s.db} }
func (s *pgStore) Attachments() AttachmentRepository     { return &attachmentRepository{db: s.db} }
func (s *pgStore) Notifications() NotificationRepository { return &notificationRepository{db: s.db} }

func (s *pgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&pgStore{db: tx})
	})
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
