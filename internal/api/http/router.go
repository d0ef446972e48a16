package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/http/handlers"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Workflow       *handlers.WorkflowHandler
	Notifications  *handlers.NotificationsHandler
	Admin          *handlers.AdminHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}

	authenticate := cfg.AuthMiddleware.Handle

	tickets := app.Group("/tickets", authenticate)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)

	tickets.Post("/:id/approve", cfg.Workflow.Approve)
	tickets.Post("/:id/reject", cfg.Workflow.Reject)
	tickets.Post("/:id/assign", cfg.Workflow.Assign)
	tickets.Post("/:id/start", cfg.Workflow.Start)
	tickets.Post("/:id/complete", cfg.Workflow.Complete)
	tickets.Post("/:id/confirm", cfg.Workflow.Confirm)
	tickets.Post("/:id/revision", cfg.Workflow.RequestRevision)
	tickets.Post("/:id/rollback", auth.RequireRole(domain.RoleAdmin), cfg.Workflow.Rollback)

	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/collaborators", cfg.Tickets.ListCollaborators)
	tickets.Post("/:id/collaborators", cfg.Tickets.AddCollaborator)
	tickets.Delete("/:id/collaborators/:userID", cfg.Tickets.RemoveCollaborator)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)

	notifications := app.Group("/notifications", authenticate)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	admin := app.Group("/admin", authenticate, auth.RequireRole(domain.RoleAdmin))
	if cfg.Admin != nil {
		admin.Post("/reminders/run", cfg.Admin.RunReminders)
		admin.Get("/metrics", cfg.Admin.Metrics)
	}
	if cfg.Directory != nil {
		app.Get("/me", authenticate, cfg.Directory.Me)
		app.Get("/departments", authenticate, cfg.Directory.ListDepartments)
		admin.Post("/departments", cfg.Directory.CreateDepartment)
		admin.Post("/users", cfg.Directory.CreateUser)
	}
}
