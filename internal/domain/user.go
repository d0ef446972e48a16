package domain

import (
	"slices"
	"time"
)

// Role enumerates the access levels of an internal user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Valid reports whether the role is one of the defined values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// CanApprove reports whether the role may approve requests at all.
// Department scope is checked separately.
func CanApprove(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

// CanReject mirrors CanApprove.
func CanReject(r Role) bool {
	return CanApprove(r)
}

// CanAssign reports whether the role may hand a ticket to an assignee.
func CanAssign(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

// CanRollback reports whether the role may restore a ticket from its audit trail.
func CanRollback(r Role) bool {
	return r == RoleAdmin
}

// User is an employee who requests, approves or executes work.
type User struct {
	ID                 string
	Name               string
	Email              string
	Role               Role
	DepartmentID       *string
	ProductIDs         []string
	TelegramChatID     *int64
	IsActive           bool
	IsApproved         bool
	EmailNotifications bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanReceiveWork reports whether the user may be assigned a ticket.
func (u *User) CanReceiveWork() bool {
	return u != nil && u.IsActive && u.IsApproved
}

// Actor is the identity performing an operation, decoupled from storage.
type Actor struct {
	UserID       string
	Role         Role
	DepartmentID *string
	// ProductIDs are the products the actor belongs to. Managers approve
	// work for these products regardless of the requesting department.
	ProductIDs   []string
}

// ActorFromUser builds the identity context for a loaded user.
func ActorFromUser(u *User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID, ProductIDs: slices.Clone(u.ProductIDs)}
}

// ManagesDepartment reports whether the actor manages the given department.
func (a Actor) ManagesDepartment(departmentID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleManager && a.DepartmentID != nil && *a.DepartmentID == departmentID
}

// ManagesProduct reports whether the actor manages the given product.
func (a Actor) ManagesProduct(productID *string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleManager && productID != nil && slices.Contains(a.ProductIDs, *productID)
}

// Is reports whether the actor is the user referenced by id.
func (a Actor) Is(userID *string) bool {
	return userID != nil && *userID == a.UserID
}
