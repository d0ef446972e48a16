package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/events"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// TicketCache is a read-through cache for single tickets.
type TicketCache interface {
	Get(ctx context.Context, id string) (*domain.Ticket, bool)
	Set(ctx context.Context, ticket *domain.Ticket)
}

// TicketService coordinates ticket intake, reads and non-status mutations.
type TicketService struct {
	store      repository.Store
	recorder   *ActivityRecorder
	dispatcher events.Dispatcher
	cache      TicketCache
	logger     *zap.Logger
	now        func() time.Time
	pageSize   int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store           repository.Store
	Recorder        *ActivityRecorder
	Dispatcher      events.Dispatcher
	Cache           TicketCache
	Logger          *zap.Logger
	Clock           func() time.Time
	DefaultPageSize int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	DepartmentID string
	ProductID    *string
	ApproverID   *string
	Title        string
	Description  string
	Priority     domain.TicketPriority
	WorkType     domain.WorkType
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	DepartmentID *string
	AssigneeID   *string
	RequesterID  *string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Limit        int
	Offset       int
}

// AttachmentInput defines attachment metadata.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:      deps.Store,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		logger:     deps.Logger,
		now:        deps.Clock,
		pageSize:   deps.DefaultPageSize,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.recorder == nil {
		s.recorder = NewActivityRecorder(s.logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.pageSize <= 0 {
		s.pageSize = 20
	}
	return s
}

// CreateTicket files a new request in the requested state.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.DepartmentID) == "" {
		return nil, apperrors.NewValidationError("title and department_id required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.WorkType == "" {
		input.WorkType = domain.WorkTypeOther
	}
	if !input.WorkType.Valid() {
		return nil, apperrors.NewValidationError("unknown work type", map[string]any{"work_type": input.WorkType})
	}

	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		dept, err := tx.Departments().GetByID(ctx, input.DepartmentID)
		if err != nil {
			return mapRepoError(err, "department", input.DepartmentID)
		}
		if !dept.IsActive {
			return apperrors.NewValidationError("department inactive", map[string]any{"department_id": dept.ID})
		}
		if input.ApproverID != nil {
			if err := checkNamedApprover(ctx, tx, actor, dept.ID, input.ProductID, *input.ApproverID); err != nil {
				return err
			}
		}

		ticket = &domain.Ticket{
			Title:           title,
			Description:     strings.TrimSpace(input.Description),
			RequesterID:     actor.UserID,
			DepartmentID:    dept.ID,
			ProductID:       input.ProductID,
			ApproverID:      input.ApproverID,
			FinalApproverID: dept.FinalApproverID,
			Status:          domain.TicketStatusRequested,
			Priority:        input.Priority,
			WorkType:        input.WorkType,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, ticket, domain.ActionCreated, "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, actor, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{Ticket: ticket.Clone()})
	return ticket, nil
}

// checkNamedApprover accepts an approver only when they could approve the
// department's work anyway and are not approving their own request.
func checkNamedApprover(ctx context.Context, tx repository.Store, actor domain.Actor, departmentID string, productID *string, approverID string) error {
	details := map[string]any{"approver_id": approverID}
	if approverID == actor.UserID {
		return apperrors.NewValidationError("requester cannot approve their own ticket", details)
	}
	approver, err := tx.Users().GetByID(ctx, approverID)
	if err != nil {
		return mapRepoError(err, "user", approverID)
	}
	if !approver.CanReceiveWork() || !domain.CanApprove(approver.Role) {
		return apperrors.NewValidationError("approver must be an active manager or admin", details)
	}
	candidate := domain.ActorFromUser(approver)
	if !candidate.ManagesDepartment(departmentID) && !candidate.ManagesProduct(productID) {
		return apperrors.NewValidationError("approver manages neither the ticket department nor its product", details)
	}
	return nil
}

// GetTicket loads a ticket visible to the actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns tickets scoped to what the actor may see.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		RequesterID:  filter.RequesterID,
		AssigneeID:   filter.AssigneeID,
		DepartmentID: filter.DepartmentID,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = s.pageSize
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleManager:
		if actor.DepartmentID == nil {
			return nil, apperrors.NewForbidden("manager without department")
		}
		repoFilter.DepartmentID = actor.DepartmentID
	default:
		if repoFilter.AssigneeID == nil || *repoFilter.AssigneeID != actor.UserID {
			self := actor.UserID
			repoFilter.RequesterID = &self
		}
	}

	tickets, err := s.store.Tickets().List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// History returns the activity trail of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.ActivityLogEntry, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.Activity().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// SoftDelete hides a ticket. Admins may delete any ticket; requesters only
// their own while it still awaits approval. Activity rows are kept.
func (s *TicketService) SoftDelete(ctx context.Context, actor domain.Actor, ticketID string) error {
	var deleted *domain.Ticket
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		current, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return mapRepoError(err, "ticket", ticketID)
		}
		if current.IsDeleted {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		ownRequest := current.RequesterID == actor.UserID && current.Status == domain.TicketStatusRequested
		if actor.Role != domain.RoleAdmin && !ownRequest {
			return apperrors.NewForbidden("not allowed to delete this ticket")
		}
		next := current.Clone()
		next.IsDeleted = true
		if err := tx.Tickets().Update(ctx, next, current.Status); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.NewInvalidTransition("delete", string(current.Status))
			}
			return apperrors.MapError(err)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, next, domain.ActionDeleted, "")
		deleted = next
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, actor, events.EventTicketDeleted, deleted.ID, nil)
	s.publish(ctx, actor, events.EventCacheInvalidate, deleted.ID, events.CacheInvalidatePayload{Reason: string(domain.ActionDeleted)})
	return nil
}

// AddComment appends a comment, optionally replying to another comment on
// the same ticket.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID, body string, parentID *string) (*domain.TicketComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		AuthorID: actor.UserID,
		ParentID: parentID,
		Body:     body,
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if parentID != nil {
			parent, err := tx.Comments().GetByID(ctx, *parentID)
			if err != nil {
				return mapRepoError(err, "comment", *parentID)
			}
			if parent.TicketID != ticket.ID {
				return apperrors.NewValidationError("parent comment belongs to another ticket", nil)
			}
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return apperrors.MapError(err)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, ticket, domain.ActionCommentAdded, stringPreview(body, 120))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, actor, events.EventCommentAdded, ticket.ID, events.CommentAddedPayload{Comment: comment, Ticket: ticket.Clone()})
	return comment, nil
}

// ListComments returns the thread in creation order.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketComment, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// AddCollaborator attaches a user to a ticket for visibility and notifications.
func (s *TicketService) AddCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) (*domain.TicketCollaborator, error) {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := ensureCanManageCollaborators(actor, ticket); err != nil {
		return nil, err
	}

	collaborator := &domain.TicketCollaborator{TicketID: ticket.ID, UserID: userID, AddedByID: actor.UserID}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return mapRepoError(err, "user", userID)
		}
		if err := tx.Collaborators().Add(ctx, collaborator); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.NewConflict("user already collaborates on ticket", map[string]any{"user_id": userID})
			}
			return apperrors.MapError(err)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, ticket, domain.ActionCollaboratorAdded, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collaborator, nil
}

// RemoveCollaborator detaches a user from a ticket.
func (s *TicketService) RemoveCollaborator(ctx context.Context, actor domain.Actor, ticketID, userID string) error {
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if err := ensureCanManageCollaborators(actor, ticket); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Collaborators().Remove(ctx, ticket.ID, userID); err != nil {
			return mapRepoError(err, "collaborator", userID)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, ticket, domain.ActionCollaboratorRemoved, userID)
		return nil
	})
}

// ListCollaborators returns the users attached to a ticket.
func (s *TicketService) ListCollaborators(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketCollaborator, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	collaborators, err := s.store.Collaborators().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return collaborators, nil
}

// AddAttachment stores metadata for a file already uploaded elsewhere.
func (s *TicketService) AddAttachment(ctx context.Context, actor domain.Actor, ticketID string, input AttachmentInput) (*domain.Attachment, error) {
	if strings.TrimSpace(input.StorageKey) == "" || strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewValidationError("storage_key and file_name required", nil)
	}
	if input.SizeBytes < 0 {
		return nil, apperrors.NewValidationError("size_bytes must not be negative", nil)
	}
	ticket, err := s.GetTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	attachment := &domain.Attachment{
		TicketID:     ticket.ID,
		UploadedByID: actor.UserID,
		StorageKey:   input.StorageKey,
		FileName:     input.FileName,
		MimeType:     input.MimeType,
		SizeBytes:    input.SizeBytes,
	}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Attachments().Create(ctx, attachment); err != nil {
			return apperrors.MapError(err)
		}
		_, _ = s.recorder.Record(ctx, tx, &actor, ticket, domain.ActionAttachmentAdded, attachment.FileName)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

// ListAttachments returns attachment metadata for a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Attachment, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	attachments, err := s.store.Attachments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachments, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, ticketID); ok {
			return cached, nil
		}
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	if ticket.IsDeleted {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if s.cache != nil {
		s.cache.Set(ctx, ticket)
	}
	return ticket, nil
}

// ensureVisible allows admins, managers of the department or product, the
// requester, the assignee, the approvers and collaborators.
func (s *TicketService) ensureVisible(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) error {
	if actor.ManagesDepartment(ticket.DepartmentID) ||
		actor.ManagesProduct(ticket.ProductID) ||
		actor.UserID == ticket.RequesterID ||
		actor.Is(ticket.AssigneeID) ||
		actor.Is(ticket.ApproverID) ||
		actor.Is(ticket.FinalApproverID) {
		return nil
	}
	collaborators, err := s.store.Collaborators().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, c := range collaborators {
		if c.UserID == actor.UserID {
			return nil
		}
	}
	return apperrors.NewForbidden("access denied")
}

func (s *TicketService) publish(ctx context.Context, actor domain.Actor, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(actor),
		Timestamp: s.now(),
		Payload:   payload,
	})
}

func ensureCanManageCollaborators(actor domain.Actor, ticket *domain.Ticket) error {
	if actor.UserID == ticket.RequesterID || actor.ManagesDepartment(ticket.DepartmentID) {
		return nil
	}
	return apperrors.NewForbidden("only the requester or a manager may change collaborators")
}

func stringPreview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
