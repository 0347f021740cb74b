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
	ErrCompanyNotFound      = errors.New("company not found")
	ErrCompanyAlreadyExists = errors.New("company already exists")
)

// CompanyRepository defines the interface for company data access
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	List(ctx context.Context, kind *domain.CompanyKind) ([]*domain.Company, error)
}

type companyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository creates a new instance of CompanyRepository
func NewCompanyRepository(db *sqlx.DB) CompanyRepository {
	return &companyRepository{db: db}
}

// Create inserts a new company using parameterized queries
func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	query := `
		INSERT INTO companies (id, name, kind, tax_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		company.ID,
		company.Name,
		company.Kind,
		company.TaxNumber,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCompanyAlreadyExists
		}
		return fmt.Errorf("failed to create company: %w", err)
	}

	return nil
}

// FindByID retrieves a company by ID
func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	query := `
		SELECT id, name, kind, tax_number, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	company := &domain.Company{}
	if err := r.db.GetContext(ctx, company, query, id); err != nil {
		if isNoRows(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to find company by ID: %w", err)
	}

	return company, nil
}

// List retrieves companies, optionally restricted to one kind
func (r *companyRepository) List(ctx context.Context, kind *domain.CompanyKind) ([]*domain.Company, error) {
	query := `SELECT id, name, kind, tax_number, created_at, updated_at FROM companies`
	args := []interface{}{}
	if kind != nil {
		query += ` WHERE kind = $1`
		args = append(args, *kind)
	}
	query += ` ORDER BY name ASC`

	companies := []*domain.Company{}
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}
