package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/service"
)

// TicketsHandler manages ticket intake, reads and thread endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		DepartmentID: req.DepartmentID,
		ProductID:    req.ProductID,
		ApproverID:   req.ApproverID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		WorkType:     req.WorkType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.SoftDelete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.ActivityResponse{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			Detail:    e.Detail,
			Snapshot:  e.Snapshot,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Body, req.ParentID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddCollaborator POST /tickets/:id/collaborators.
func (h *TicketsHandler) AddCollaborator(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AddCollaboratorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	collaborator, err := h.service.AddCollaborator(c.UserContext(), actor, c.Params("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": collaboratorResponse(*collaborator)})
}

// RemoveCollaborator DELETE /tickets/:id/collaborators/:userID.
func (h *TicketsHandler) RemoveCollaborator(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveCollaborator(c.UserContext(), actor, c.Params("id"), c.Params("userID")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListCollaborators GET /tickets/:id/collaborators.
func (h *TicketsHandler) ListCollaborators(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	collaborators, err := h.service.ListCollaborators(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CollaboratorResponse, 0, len(collaborators))
	for _, col := range collaborators {
		items = append(items, collaboratorResponse(col))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachment POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AttachmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	attachment, err := h.service.AddAttachment(c.UserContext(), actor, c.Params("id"), service.AttachmentInput{
		StorageKey: req.StorageKey,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(*attachment)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	attachments, err := h.service.ListAttachments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		items = append(items, attachmentResponse(a))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		DepartmentID: optional(c.Query("department_id")),
		AssigneeID:   optional(c.Query("assignee_id")),
		RequesterID:  optional(c.Query("requester_id")),
	}
	for _, s := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, p := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(p))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 0)
	if pageSize > 0 {
		filter.Limit = pageSize
		filter.Offset = (page - 1) * pageSize
	}
	return filter
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                   t.ID,
		Title:                t.Title,
		Description:          t.Description,
		RequesterID:          t.RequesterID,
		AssigneeID:           t.AssigneeID,
		DepartmentID:         t.DepartmentID,
		ProductID:            t.ProductID,
		ApproverID:           t.ApproverID,
		FinalApproverID:      t.FinalApproverID,
		Status:               t.Status,
		Priority:             t.Priority,
		WorkType:             t.WorkType,
		Deadline:             t.Deadline,
		ApprovedAt:           t.ApprovedAt,
		AssignedAt:           t.AssignedAt,
		StartedAt:            t.StartedAt,
		CompletedAt:          t.CompletedAt,
		ConfirmedAt:          t.ConfirmedAt,
		ConfirmedByRequester: t.ConfirmedByRequester,
		CompletedLate:        t.CompletedLate,
		RejectionReason:      t.RejectionReason,
		RevisionCount:        t.RevisionCount,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func commentResponse(c *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		ParentID:  c.ParentID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

func collaboratorResponse(c domain.TicketCollaborator) dto.CollaboratorResponse {
	return dto.CollaboratorResponse{UserID: c.UserID, AddedByID: c.AddedByID, CreatedAt: c.CreatedAt}
}

func attachmentResponse(a domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:           a.ID,
		UploadedByID: a.UploadedByID,
		StorageKey:   a.StorageKey,
		FileName:     a.FileName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		CreatedAt:    a.CreatedAt,
	}
}
