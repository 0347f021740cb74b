package repository

import (
	"context"
	"errors"
	"fmt"

	"dpp-certification/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrDuplicateAssignment = errors.New("an open assignment already exists for this product and distributor")
)

// DistributorUpdateFunc mutates the locked assignment and reports whether
// the row must be written.
type DistributorUpdateFunc func(a *domain.DistributorAssignment) (bool, error)

// AssignmentRepository persists material manufacturer bindings and
// distributor assignments
type AssignmentRepository interface {
	UpsertManufacturer(ctx context.Context, a *domain.MaterialManufacturerAssignment) (*domain.MaterialManufacturerAssignment, error)
	DeleteManufacturer(ctx context.Context, materialID uuid.UUID) error
	FindManufacturer(ctx context.Context, materialID uuid.UUID) (*domain.MaterialManufacturerAssignment, error)
	ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error)

	CreateDistributor(ctx context.Context, a *domain.DistributorAssignment) error
	UpdateDistributor(ctx context.Context, id uuid.UUID, fn DistributorUpdateFunc) (*domain.DistributorAssignment, error)
	FindDistributor(ctx context.Context, id uuid.UUID) (*domain.DistributorAssignment, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error)
}

type assignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository
func NewAssignmentRepository(db *sqlx.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const distributorColumns = `id, product_id, distributor_id, assigned_by, status, territory, commission_rate, notes, assigned_at, updated_at`

// UpsertManufacturer replaces the material's manufacturer in a single
// statement, so concurrent callers can never create a second row.
func (r *assignmentRepository) UpsertManufacturer(ctx context.Context, a *domain.MaterialManufacturerAssignment) (*domain.MaterialManufacturerAssignment, error) {
	query := `
		INSERT INTO material_manufacturer_assignments (material_id, manufacturer_id, assigned_by, created_at, updated_at)
		VALUES (:material_id, :manufacturer_id, :assigned_by, :created_at, :updated_at)
		ON CONFLICT (material_id)
		DO UPDATE SET
			manufacturer_id = EXCLUDED.manufacturer_id,
			assigned_by = EXCLUDED.assigned_by,
			updated_at = EXCLUDED.updated_at
		RETURNING material_id, manufacturer_id, assigned_by, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, a)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert manufacturer assignment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to upsert manufacturer assignment: %w", err)
		}
		return nil, fmt.Errorf("failed to upsert manufacturer assignment: no row returned")
	}

	out := &domain.MaterialManufacturerAssignment{}
	if err := rows.StructScan(out); err != nil {
		return nil, fmt.Errorf("failed to scan manufacturer assignment: %w", err)
	}
	return out, nil
}

// DeleteManufacturer removes the binding; a missing row is not an error
func (r *assignmentRepository) DeleteManufacturer(ctx context.Context, materialID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM material_manufacturer_assignments WHERE material_id = $1`, materialID); err != nil {
		return fmt.Errorf("failed to delete manufacturer assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepository) FindManufacturer(ctx context.Context, materialID uuid.UUID) (*domain.MaterialManufacturerAssignment, error) {
	query := `
		SELECT material_id, manufacturer_id, assigned_by, created_at, updated_at
		FROM material_manufacturer_assignments
		WHERE material_id = $1
	`
	a := &domain.MaterialManufacturerAssignment{}
	if err := r.db.GetContext(ctx, a, query, materialID); err != nil {
		if isNoRows(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to find manufacturer assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepository) ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error) {
	query := `
		SELECT material_id, manufacturer_id, assigned_by, created_at, updated_at
		FROM material_manufacturer_assignments
		WHERE manufacturer_id = $1
		ORDER BY updated_at DESC
	`
	out := []*domain.MaterialManufacturerAssignment{}
	if err := r.db.SelectContext(ctx, &out, query, manufacturerID); err != nil {
		return nil, fmt.Errorf("failed to list manufacturer assignments: %w", err)
	}
	return out, nil
}

// CreateDistributor inserts a pending assignment unless the pair already
// has an open one. The partial unique index catches the concurrent case.
func (r *assignmentRepository) CreateDistributor(ctx context.Context, a *domain.DistributorAssignment) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var open int
		err := tx.GetContext(ctx, &open, `
			SELECT COUNT(*)
			FROM distributor_assignments
			WHERE product_id = $1 AND distributor_id = $2 AND status IN ('pending', 'active')
		`, a.ProductID, a.DistributorID)
		if err != nil {
			return fmt.Errorf("failed to check open assignments: %w", err)
		}
		if open > 0 {
			return ErrDuplicateAssignment
		}

		query := `
			INSERT INTO distributor_assignments (` + distributorColumns + `)
			VALUES (:id, :product_id, :distributor_id, :assigned_by, :status, :territory, :commission_rate, :notes, :assigned_at, :updated_at)
		`
		if _, err := tx.NamedExecContext(ctx, query, a); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateAssignment
			}
			return fmt.Errorf("failed to create distributor assignment: %w", err)
		}
		return nil
	})
}

// UpdateDistributor locks the assignment, applies fn and writes the status
// back when fn asks for it
func (r *assignmentRepository) UpdateDistributor(ctx context.Context, id uuid.UUID, fn DistributorUpdateFunc) (*domain.DistributorAssignment, error) {
	var out *domain.DistributorAssignment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		a := &domain.DistributorAssignment{}
		if err := tx.GetContext(ctx, a, `SELECT `+distributorColumns+` FROM distributor_assignments WHERE id = $1 FOR UPDATE`, id); err != nil {
			if isNoRows(err) {
				return ErrAssignmentNotFound
			}
			return fmt.Errorf("failed to lock distributor assignment: %w", err)
		}

		write, err := fn(a)
		if err != nil {
			return err
		}
		if write {
			_, err := tx.ExecContext(ctx,
				`UPDATE distributor_assignments SET status = $2, updated_at = $3 WHERE id = $1`,
				a.ID, a.Status, a.UpdatedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateAssignment
				}
				return fmt.Errorf("failed to update distributor assignment: %w", err)
			}
		}

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assignmentRepository) FindDistributor(ctx context.Context, id uuid.UUID) (*domain.DistributorAssignment, error) {
	a := &domain.DistributorAssignment{}
	if err := r.db.GetContext(ctx, a, `SELECT `+distributorColumns+` FROM distributor_assignments WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to find distributor assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error) {
	out := []*domain.DistributorAssignment{}
	query := `SELECT ` + distributorColumns + ` FROM distributor_assignments WHERE product_id = $1 ORDER BY assigned_at ASC`
	if err := r.db.SelectContext(ctx, &out, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list distributor assignments: %w", err)
	}
	return out, nil
}
