package repository

import (
	"context"
	"errors"
	"fmt"

	"dpp-certification/internal/domain"

	"github.com/jmoiron/sqlx"
)

var ErrProductTypeNotFound = errors.New("product type not found")

// ProductTypeRepository reads the product type catalogue
type ProductTypeRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.ProductType, error)
	List(ctx context.Context) ([]*domain.ProductType, error)
}

type productTypeRepository struct {
	db *sqlx.DB
}

// NewProductTypeRepository creates a new instance of ProductTypeRepository
func NewProductTypeRepository(db *sqlx.DB) ProductTypeRepository {
	return &productTypeRepository{db: db}
}

// FindByCode retrieves a product type with its required document categories
func (r *productTypeRepository) FindByCode(ctx context.Context, code string) (*domain.ProductType, error) {
	query := `
		SELECT code, name, description, created_at
		FROM product_types
		WHERE code = $1
	`

	pt := &domain.ProductType{}
	if err := r.db.GetContext(ctx, pt, query, code); err != nil {
		if isNoRows(err) {
			return nil, ErrProductTypeNotFound
		}
		return nil, fmt.Errorf("failed to find product type: %w", err)
	}

	required := []domain.DocumentType{}
	err := r.db.SelectContext(ctx, &required, `
		SELECT document_type
		FROM product_type_required_documents
		WHERE product_type = $1
		ORDER BY document_type ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load required documents: %w", err)
	}
	pt.RequiredDocuments = required

	return pt, nil
}

type requirementRow struct {
	ProductType  string              `db:"product_type"`
	DocumentType domain.DocumentType `db:"document_type"`
}

// List retrieves all product types ordered by name
func (r *productTypeRepository) List(ctx context.Context) ([]*domain.ProductType, error) {
	types := []*domain.ProductType{}
	if err := r.db.SelectContext(ctx, &types, `SELECT code, name, description, created_at FROM product_types ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("failed to list product types: %w", err)
	}

	rows := []requirementRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT product_type, document_type
		FROM product_type_required_documents
		ORDER BY product_type, document_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list required documents: %w", err)
	}

	byCode := make(map[string]*domain.ProductType, len(types))
	for _, pt := range types {
		pt.RequiredDocuments = []domain.DocumentType{}
		byCode[pt.Code] = pt
	}
	for _, row := range rows {
		if pt, ok := byCode[row.ProductType]; ok {
			pt.RequiredDocuments = append(pt.RequiredDocuments, row.DocumentType)
		}
	}

	return types, nil
}
