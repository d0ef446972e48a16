package service

import (
	"context"
	"net/mail"
	"slices"
	"strings"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

// DirectoryService manages departments and the users that file and approve requests.
type DirectoryService struct {
	store repository.Store
}

// UserCreateInput describes a new directory user.
type UserCreateInput struct {
	Name               string
	Email              string
	Role               domain.Role
	DepartmentID       *string
	ProductIDs         []string
	TelegramChatID     *int64
	EmailNotifications bool
}

// NewDirectoryService constructs the service.
func NewDirectoryService(store repository.Store) *DirectoryService {
	return &DirectoryService{store: store}
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateDepartment creates a department, optionally naming its final approver.
func (s *DirectoryService) CreateDepartment(ctx context.Context, actor domain.Actor, name, description string, finalApproverID *string) (*domain.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	if finalApproverID != nil {
		approver, err := s.store.Users().GetByID(ctx, *finalApproverID)
		if err != nil {
			return nil, mapRepoError(err, "user", *finalApproverID)
		}
		if !domain.CanApprove(approver.Role) {
			return nil, apperrors.NewValidationError("final approver must be a manager or admin", map[string]any{"final_approver_id": approver.ID})
		}
	}
	dept := &domain.Department{
		Name:            name,
		Description:     strings.TrimSpace(description),
		FinalApproverID: finalApproverID,
		IsActive:        true,
	}
	if err := s.store.Departments().Create(ctx, dept); err != nil {
		return nil, mapRepoError(err, "department", name)
	}
	return dept, nil
}

// ListDepartments returns active departments. Any authenticated user may list them.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	depts, err := s.store.Departments().ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return depts, nil
}

// CreateUser registers a directory user. Users created by an admin are approved immediately.
func (s *DirectoryService) CreateUser(ctx context.Context, actor domain.Actor, input UserCreateInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
		}
	}
	if input.Role == "" {
		input.Role = domain.RoleMember
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if input.Role == domain.RoleManager && input.DepartmentID == nil {
		return nil, apperrors.NewValidationError("managers need a department", nil)
	}
	if input.DepartmentID != nil {
		if _, err := s.store.Departments().GetByID(ctx, *input.DepartmentID); err != nil {
			return nil, mapRepoError(err, "department", *input.DepartmentID)
		}
	}

	user := &domain.User{
		Name:               input.Name,
		Email:              input.Email,
		Role:               input.Role,
		DepartmentID:       input.DepartmentID,
		ProductIDs:         normalizeIDs(input.ProductIDs),
		TelegramChatID:     input.TelegramChatID,
		IsActive:           true,
		IsApproved:         true,
		EmailNotifications: input.EmailNotifications && input.Email != "",
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user", input.Email)
	}
	return user, nil
}

// normalizeIDs trims, drops blanks and deduplicates.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// GetUser returns a user by id.
func (s *DirectoryService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user", id)
	}
	return user, nil
}
