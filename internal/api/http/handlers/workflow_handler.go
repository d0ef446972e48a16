package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/service"
)

// WorkflowHandler exposes lifecycle transitions.
type WorkflowHandler struct {
	workflow *service.WorkflowService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflow *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// Approve POST /tickets/:id/approve.
func (h *WorkflowHandler) Approve(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Approve(c.UserContext(), actor, c.Params("id")))
}

// Reject POST /tickets/:id/reject.
func (h *WorkflowHandler) Reject(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RejectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Reject(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// Assign POST /tickets/:id/assign.
func (h *WorkflowHandler) Assign(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Assign(c.UserContext(), actor, c.Params("id"), req.AssigneeID))
}

// Start POST /tickets/:id/start.
func (h *WorkflowHandler) Start(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Start(c.UserContext(), actor, c.Params("id")))
}

// Complete POST /tickets/:id/complete.
func (h *WorkflowHandler) Complete(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Complete(c.UserContext(), actor, c.Params("id")))
}

// Confirm POST /tickets/:id/confirm.
func (h *WorkflowHandler) Confirm(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Confirm(c.UserContext(), actor, c.Params("id")))
}

// RequestRevision POST /tickets/:id/revision.
func (h *WorkflowHandler) RequestRevision(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RevisionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.RequestRevision(c.UserContext(), actor, c.Params("id"), req.Note))
}

// Rollback POST /tickets/:id/rollback.
func (h *WorkflowHandler) Rollback(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RollbackRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return respondTicket(c)(h.workflow.Rollback(c.UserContext(), actor, c.Params("id"), req.ActivityID))
}

// respondTicket renders the result of a transition.
func respondTicket(c *fiber.Ctx) func(*domain.Ticket, error) error {
	return func(ticket *domain.Ticket, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
	}
}
