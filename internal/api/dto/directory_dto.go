package dto

import (
	"time"

	"github.com/spec-kit/request-desk/internal/domain"
)

// CreateDepartmentRequest is the payload for POST /admin/departments.
type CreateDepartmentRequest struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Description     string  `json:"description" validate:"max=2000"`
	FinalApproverID *string `json:"final_approver_id"`
}

// DepartmentResponse is a department as exposed to clients.
type DepartmentResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	FinalApproverID *string   `json:"final_approver_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateUserRequest is the payload for POST /admin/users.
type CreateUserRequest struct {
	Name               string      `json:"name" validate:"required,max=200"`
	Email              string      `json:"email" validate:"omitempty,email"`
	Role               domain.Role `json:"role" validate:"omitempty,oneof=admin manager member"`
	DepartmentID       *string     `json:"department_id"`
	ProductIDs         []string    `json:"product_ids" validate:"omitempty,max=50,dive,required,max=64"`
	TelegramChatID     *int64      `json:"telegram_chat_id"`
	EmailNotifications bool        `json:"email_notifications"`
}

// UserResponse is a directory user.
type UserResponse struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	Role               domain.Role `json:"role"`
	DepartmentID       *string     `json:"department_id"`
	ProductIDs         []string    `json:"product_ids"`
	EmailNotifications bool        `json:"email_notifications"`
	CreatedAt          time.Time   `json:"created_at"`
}
