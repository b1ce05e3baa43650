package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// AssignmentRepository stores the category -> specialist handle relation.
type AssignmentRepository interface {
	// Add inserts the pair unless it exists and reports whether a row was created.
	Add(ctx context.Context, category domain.Category, handle string) (*domain.CategoryAssignment, bool, error)
	ListByCategory(ctx context.Context, category domain.Category) ([]domain.CategoryAssignment, error)
	ListByHandle(ctx context.Context, handle string) ([]domain.CategoryAssignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Add(ctx context.Context, category domain.Category, handle string) (*domain.CategoryAssignment, bool, error) {
	const insert = `
        INSERT INTO specialist_assignments (category, specialist_handle)
        VALUES ($1, $2)
        ON CONFLICT (category, specialist_handle) DO NOTHING
        RETURNING id, category, specialist_handle, created_at`
	assignment, err := scanAssignment(r.pool.QueryRow(ctx, insert, category, handle))
	if err == nil {
		return assignment, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	const existing = `
        SELECT id, category, specialist_handle, created_at
        FROM specialist_assignments WHERE category=$1 AND specialist_handle=$2`
	assignment, err = scanAssignment(r.pool.QueryRow(ctx, existing, category, handle))
	if err != nil {
		return nil, false, notFound(err)
	}
	return assignment, false, nil
}

func (r *assignmentRepository) ListByCategory(ctx context.Context, category domain.Category) ([]domain.CategoryAssignment, error) {
	const query = `
        SELECT id, category, specialist_handle, created_at
        FROM specialist_assignments WHERE category=$1 ORDER BY id ASC`
	return r.list(ctx, query, category)
}

func (r *assignmentRepository) ListByHandle(ctx context.Context, handle string) ([]domain.CategoryAssignment, error) {
	const query = `
        SELECT id, category, specialist_handle, created_at
        FROM specialist_assignments WHERE specialist_handle=$1 ORDER BY id ASC`
	return r.list(ctx, query, handle)
}

func (r *assignmentRepository) list(ctx context.Context, query string, arg any) ([]domain.CategoryAssignment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *assignment)
	}
	return result, rows.Err()
}

func scanAssignment(row rowScanner) (*domain.CategoryAssignment, error) {
	var assignment domain.CategoryAssignment
	if err := row.Scan(
		&assignment.ID,
		&assignment.Category,
		&assignment.Handle,
		&assignment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &assignment, nil
}
