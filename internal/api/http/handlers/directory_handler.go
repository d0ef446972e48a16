package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/api/dto"
	"github.com/spec-kit/request-desk/internal/auth"
	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/service"
)

// DirectoryHandler exposes departments and users.
type DirectoryHandler struct {
	directory *service.DirectoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(directory *service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// ListDepartments GET /departments.
func (h *DirectoryHandler) ListDepartments(c *fiber.Ctx) error {
	depts, err := h.directory.ListDepartments(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(depts))
	for i := range depts {
		items = append(items, departmentResponse(&depts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateDepartment POST /admin/departments.
func (h *DirectoryHandler) CreateDepartment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateDepartmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	dept, err := h.directory.CreateDepartment(c.UserContext(), actor, req.Name, req.Description, req.FinalApproverID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": departmentResponse(dept)})
}

// CreateUser POST /admin/users.
func (h *DirectoryHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.directory.CreateUser(c.UserContext(), actor, service.UserCreateInput{
		Name:               req.Name,
		Email:              req.Email,
		Role:               req.Role,
		DepartmentID:       req.DepartmentID,
		ProductIDs:         req.ProductIDs,
		TelegramChatID:     req.TelegramChatID,
		EmailNotifications: req.EmailNotifications,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Me GET /me.
func (h *DirectoryHandler) Me(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.directory.GetUser(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

func departmentResponse(d *domain.Department) dto.DepartmentResponse {
	return dto.DepartmentResponse{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		FinalApproverID: d.FinalApproverID,
		CreatedAt:       d.CreatedAt,
	}
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		DepartmentID:       u.DepartmentID,
		ProductIDs:         u.ProductIDs,
		EmailNotifications: u.EmailNotifications,
		CreatedAt:          u.CreatedAt,
	}
}
