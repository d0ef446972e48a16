package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-desk/internal/domain"
)

// UserRepository defines persistence access for employees.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListByDepartmentRole returns active users of a department holding role.
	ListByDepartmentRole(ctx context.Context, departmentID string, role domain.Role) ([]domain.User, error)
	// ListByProductRole returns active users belonging to a product holding role.
	ListByProductRole(ctx context.Context, productID string, role domain.Role) ([]domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

const userColumns = `id, name, email, role, department_id, product_ids, telegram_chat_id, is_active,
        is_approved, email_notifications, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	productIDs := user.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}
	const query = `
        INSERT INTO users (id, name, email, role, department_id, product_ids, telegram_chat_id, is_active,
            is_approved, email_notifications)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		user.DepartmentID,
		productIDs,
		user.TelegramChatID,
		user.IsActive,
		user.IsApproved,
		user.EmailNotifications,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return user, nil
}

func (r *userRepository) ListByDepartmentRole(ctx context.Context, departmentID string, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE department_id=$1 AND role=$2 AND is_active=TRUE ORDER BY created_at`
	return r.list(ctx, query, departmentID, role)
}

func (r *userRepository) ListByProductRole(ctx context.Context, productID string, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE $1 = ANY(product_ids) AND role=$2 AND is_active=TRUE ORDER BY created_at`
	return r.list(ctx, query, productID, role)
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role=$1 AND is_active=TRUE ORDER BY created_at`
	return r.list(ctx, query, role)
}

func (r *userRepository) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.DepartmentID,
		&user.ProductIDs,
		&user.TelegramChatID,
		&user.IsActive,
		&user.IsApproved,
		&user.EmailNotifications,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
