package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
)

type ticketRepo struct {
	sh   *shared
	inTx bool
}

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	defer r.sh.lockWrite(r.inTx)()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if _, exists := r.sh.data.tickets[ticket.ID]; exists {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.sh.data.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	t, ok := r.sh.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	defer r.sh.lockWrite(r.inTx)()
	if err := r.sh.fault(OpUpdateTicket); err != nil {
		return err
	}
	current, ok := r.sh.data.tickets[ticket.ID]
	if !ok || current.Status != expected {
		return repository.ErrConflict
	}
	stored := ticket.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.LastReminderAt = current.LastReminderAt
	stored.UpdatedAt = time.Now().UTC()
	ticket.UpdatedAt = stored.UpdatedAt
	r.sh.data.tickets[ticket.ID] = stored
	return nil
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	var result []domain.Ticket
	for _, t := range r.sh.data.tickets {
		if t.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.DepartmentID != nil && t.DepartmentID != *filter.DepartmentID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !slices.Contains(filter.Priorities, t.Priority) {
			continue
		}
		result = append(result, *t.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(result) {
		return nil, nil
	}
	end := min(offset+limit, len(result))
	return result[offset:end], nil
}

func (r *ticketRepo) ListReminderCandidates(_ context.Context, statuses []domain.TicketStatus, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()

	var result []domain.Ticket
	for _, t := range r.sh.data.tickets {
		if t.IsDeleted || t.ConfirmedByRequester || !slices.Contains(statuses, t.Status) {
			continue
		}
		if t.LastReminderAt != nil && !t.LastReminderAt.Before(cutoff) {
			continue
		}
		result = append(result, *t.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ticketRepo) ClaimReminder(_ context.Context, id string, statuses []domain.TicketStatus, now, cutoff time.Time) (*domain.Ticket, error) {
	defer r.sh.lockWrite(r.inTx)()
	t, ok := r.sh.data.tickets[id]
	if !ok || t.IsDeleted || t.ConfirmedByRequester || !slices.Contains(statuses, t.Status) {
		return nil, nil
	}
	if t.LastReminderAt != nil && !t.LastReminderAt.Before(cutoff) {
		return nil, nil
	}
	stamp := now
	t.LastReminderAt = &stamp
	return t.Clone(), nil
}

type activityRepo struct {
	sh   *shared
	inTx bool
}

func (r *activityRepo) Append(_ context.Context, entry *domain.ActivityLogEntry) error {
	defer r.sh.lockWrite(r.inTx)()
	if err := r.sh.fault(OpAppendActivity); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	stored := *entry
	stored.Snapshot = entry.Snapshot.Clone()
	r.sh.data.activity = append(r.sh.data.activity, stored)
	return nil
}

func (r *activityRepo) GetByID(_ context.Context, id string) (*domain.ActivityLogEntry, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	for _, e := range r.sh.data.activity {
		if e.ID == id {
			out := e
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *activityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ActivityLogEntry, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.ActivityLogEntry
	for _, e := range r.sh.data.activity {
		if e.TicketID == ticketID {
			result = append(result, e)
		}
	}
	return result, nil
}

type userRepo struct {
	sh   *shared
	inTx bool
}

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	defer r.sh.lockWrite(r.inTx)()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, u := range r.sh.data.users {
		if u.ID == user.ID || (user.Email != "" && u.Email == user.Email) {
			return repository.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	stored.ProductIDs = slices.Clone(user.ProductIDs)
	r.sh.data.users[user.ID] = stored
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	u, ok := r.sh.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	for _, u := range r.sh.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) ListByDepartmentRole(_ context.Context, departmentID string, role domain.Role) ([]domain.User, error) {
	return r.filter(func(u domain.User) bool {
		return u.Role == role && u.DepartmentID != nil && *u.DepartmentID == departmentID
	}), nil
}

func (r *userRepo) ListByProductRole(_ context.Context, productID string, role domain.Role) ([]domain.User, error) {
	return r.filter(func(u domain.User) bool {
		return u.Role == role && slices.Contains(u.ProductIDs, productID)
	}), nil
}

func (r *userRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	return r.filter(func(u domain.User) bool { return u.Role == role }), nil
}

func (r *userRepo) filter(keep func(domain.User) bool) []domain.User {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.User
	for _, u := range r.sh.data.users {
		if u.IsActive && keep(u) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

type departmentRepo struct {
	sh   *shared
	inTx bool
}

func (r *departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	defer r.sh.lockWrite(r.inTx)()
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	if _, exists := r.sh.data.departments[dept.ID]; exists {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	dept.CreatedAt = now
	dept.UpdatedAt = now
	r.sh.data.departments[dept.ID] = *dept
	return nil
}

func (r *departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	d, ok := r.sh.data.departments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *departmentRepo) ListActive(_ context.Context) ([]domain.Department, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.Department
	for _, d := range r.sh.data.departments {
		if d.IsActive {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type commentRepo struct {
	sh   *shared
	inTx bool
}

func (r *commentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	defer r.sh.lockWrite(r.inTx)()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = time.Now().UTC()
	r.sh.data.comments = append(r.sh.data.comments, *comment)
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id string) (*domain.TicketComment, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	for _, c := range r.sh.data.comments {
		if c.ID == id {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.TicketComment
	for _, c := range r.sh.data.comments {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	return result, nil
}

type collaboratorRepo struct {
	sh   *shared
	inTx bool
}

func (r *collaboratorRepo) Add(_ context.Context, collaborator *domain.TicketCollaborator) error {
	defer r.sh.lockWrite(r.inTx)()
	for _, c := range r.sh.data.collaborators {
		if c.TicketID == collaborator.TicketID && c.UserID == collaborator.UserID {
			return repository.ErrConflict
		}
	}
	collaborator.CreatedAt = time.Now().UTC()
	r.sh.data.collaborators = append(r.sh.data.collaborators, *collaborator)
	return nil
}

func (r *collaboratorRepo) Remove(_ context.Context, ticketID, userID string) error {
	defer r.sh.lockWrite(r.inTx)()
	for i, c := range r.sh.data.collaborators {
		if c.TicketID == ticketID && c.UserID == userID {
			r.sh.data.collaborators = slices.Delete(r.sh.data.collaborators, i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *collaboratorRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketCollaborator, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.TicketCollaborator
	for _, c := range r.sh.data.collaborators {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	return result, nil
}

type attachmentRepo struct {
	sh   *shared
	inTx bool
}

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	defer r.sh.lockWrite(r.inTx)()
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	attachment.CreatedAt = time.Now().UTC()
	r.sh.data.attachments = append(r.sh.data.attachments, *attachment)
	return nil
}

func (r *attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	var result []domain.Attachment
	for _, a := range r.sh.data.attachments {
		if a.TicketID == ticketID {
			result = append(result, a)
		}
	}
	return result, nil
}

type notificationRepo struct {
	sh   *shared
	inTx bool
}

func (r *notificationRepo) Create(_ context.Context, n *domain.NotificationRecord) error {
	defer r.sh.lockWrite(r.inTx)()
	if err := r.sh.fault(OpCreateNotification); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	r.sh.data.notifications = append(r.sh.data.notifications, *n)
	return nil
}

func (r *notificationRepo) UpdateSent(_ context.Context, id string, flags domain.ChannelFlags) error {
	defer r.sh.lockWrite(r.inTx)()
	for i := range r.sh.data.notifications {
		if r.sh.data.notifications[i].ID == id {
			r.sh.data.notifications[i].Sent = flags
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *notificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.NotificationRecord, error) {
	r.sh.mu.Lock()
	defer r.sh.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var result []domain.NotificationRecord
	for i := len(r.sh.data.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		n := r.sh.data.notifications[i]
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, recipientID string, at time.Time) error {
	defer r.sh.lockWrite(r.inTx)()
	for i := range r.sh.data.notifications {
		n := &r.sh.data.notifications[i]
		if n.ID == id && n.RecipientID == recipientID {
			if n.ReadAt == nil {
				stamp := at
				n.ReadAt = &stamp
			}
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}
