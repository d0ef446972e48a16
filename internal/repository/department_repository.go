package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/request-desk/internal/domain"
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
}

type departmentRepository struct {
	db DBTX
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO departments (id, name, description, final_approver_id, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		dept.ID,
		dept.Name,
		dept.Description,
		dept.FinalApproverID,
		dept.IsActive,
	).Scan(&dept.CreatedAt, &dept.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	const query = `
        SELECT id, name, description, final_approver_id, is_active, created_at, updated_at
        FROM departments WHERE id=$1`
	dept, err := scanDepartment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return dept, nil
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	const query = `
        SELECT id, name, description, final_approver_id, is_active, created_at, updated_at
        FROM departments WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var dept domain.Department
	if err := row.Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&dept.FinalApproverID,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}
