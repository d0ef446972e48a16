// Package memstore is an in-process repository.Store used by tests and by
// the API when no Postgres DSN is configured.
package memstore

import (
	"context"
	"sync"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
)

// Op names a store operation that can be made to fail.
type Op string

const (
	OpAppendActivity     Op = "activity.append"
	OpCreateNotification Op = "notification.create"
	OpUpdateTicket       Op = "ticket.update"
)

type state struct {
	tickets       map[string]*domain.Ticket
	users         map[string]domain.User
	departments   map[string]domain.Department
	activity      []domain.ActivityLogEntry
	comments      []domain.TicketComment
	collaborators []domain.TicketCollaborator
	attachments   []domain.Attachment
	notifications []domain.NotificationRecord
}

func newState() *state {
	return &state{
		tickets:     map[string]*domain.Ticket{},
		users:       map[string]domain.User{},
		departments: map[string]domain.Department{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, t := range s.tickets {
		c.tickets[id] = t.Clone()
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	for id, d := range s.departments {
		c.departments[id] = d
	}
	c.activity = append([]domain.ActivityLogEntry(nil), s.activity...)
	c.comments = append([]domain.TicketComment(nil), s.comments...)
	c.collaborators = append([]domain.TicketCollaborator(nil), s.collaborators...)
	c.attachments = append([]domain.Attachment(nil), s.attachments...)
	c.notifications = append([]domain.NotificationRecord(nil), s.notifications...)
	return c
}

type shared struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	data   *state
	faults map[Op]error
}

// lockWrite guards a mutation. Writes outside a transaction also wait for
// any open transaction so a rollback cannot discard them.
func (sh *shared) lockWrite(inTx bool) (unlock func()) {
	if !inTx {
		sh.txMu.Lock()
	}
	sh.mu.Lock()
	return func() {
		sh.mu.Unlock()
		if !inTx {
			sh.txMu.Unlock()
		}
	}
}

func (sh *shared) fault(op Op) error {
	if err, ok := sh.faults[op]; ok {
		return err
	}
	return nil
}

// Store implements repository.Store in memory. Top-level transactions are
// serialized, which stands in for row locks.
type Store struct {
	sh   *shared
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{sh: &shared{data: newState(), faults: map[Op]error{}}}
}

// SetFault makes every subsequent call of op fail with err. A nil err clears it.
func (s *Store) SetFault(op Op, err error) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	if err == nil {
		delete(s.sh.faults, op)
		return
	}
	s.sh.faults[op] = err
}

func (s *Store) Tickets() repository.TicketRepository             { return &ticketRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Activity() repository.ActivityRepository          { return &activityRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Users() repository.UserRepository                 { return &userRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Departments() repository.DepartmentRepository     { return &departmentRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Comments() repository.CommentRepository           { return &commentRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Collaborators() repository.CollaboratorRepository { return &collaboratorRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Attachments() repository.AttachmentRepository     { return &attachmentRepo{sh: s.sh, inTx: s.inTx} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{sh: s.sh, inTx: s.inTx} }

// InTx snapshots the state and restores it when fn fails. Nested calls
// behave like savepoints. Writes issued outside the transaction block until
// it ends, so the restore only ever discards the transaction's own work.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.txMu.Lock()
		defer s.sh.txMu.Unlock()
	}

	s.sh.mu.Lock()
	backup := s.sh.data.clone()
	s.sh.mu.Unlock()

	if err := fn(&Store{sh: s.sh, inTx: true}); err != nil {
		s.sh.mu.Lock()
		s.sh.data = backup
		s.sh.mu.Unlock()
		return err
	}
	return nil
}
