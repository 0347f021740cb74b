package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dpp-certification/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrMaterialNotFound = errors.New("material not found")
)

// TransitionFunc inspects the locked product and returns the history entry
// to append. A nil entry with a nil error leaves the product untouched.
type TransitionFunc func(p *domain.Product) (*domain.StatusHistoryEntry, error)

// EditFunc mutates the locked product in place. Returning an error aborts
// the edit.
type EditFunc func(p *domain.Product) error

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product, entry *domain.StatusHistoryEntry) error
	Edit(ctx context.Context, id uuid.UUID, fn EditFunc) (*domain.Product, error)
	Transition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*domain.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error)
	History(ctx context.Context, id uuid.UUID) ([]domain.StatusHistoryEntry, error)
	FindMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error)
}

type productRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, model, description, product_type, company_id, manufacturer_id, status, created_at, updated_at`

// Create inserts the product with its images, materials and creation
// history entry in one transaction
func (r *productRepository) Create(ctx context.Context, product *domain.Product, entry *domain.StatusHistoryEntry) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO products (id, name, model, description, product_type, company_id, manufacturer_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.ExecContext(
			ctx,
			query,
			product.ID,
			product.Name,
			product.Model,
			product.Description,
			product.ProductType,
			product.CompanyID,
			product.ManufacturerID,
			product.Status,
			product.CreatedAt,
			product.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		if err := writeImages(ctx, tx, product.ID, product.Images); err != nil {
			return err
		}
		if err := writeMaterials(ctx, tx, product.ID, product.Materials); err != nil {
			return err
		}
		if entry != nil {
			return insertHistory(ctx, tx, entry)
		}
		return nil
	})
}

// Edit locks the product row, applies fn and writes back the editable
// fields, images and materials
func (r *productRepository) Edit(ctx context.Context, id uuid.UUID, fn EditFunc) (*domain.Product, error) {
	var product *domain.Product
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		p, err := lockProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}

		p.UpdatedAt = time.Now().UTC()
		query := `
			UPDATE products
			SET name = $2, model = $3, description = $4, product_type = $5,
			    manufacturer_id = $6, updated_at = $7
			WHERE id = $1
		`
		_, err = tx.ExecContext(ctx, query, p.ID, p.Name, p.Model, p.Description, p.ProductType, p.ManufacturerID, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, p.ID); err != nil {
			return fmt.Errorf("failed to clear product images: %w", err)
		}
		if err := writeImages(ctx, tx, p.ID, p.Images); err != nil {
			return err
		}
		if err := replaceMaterials(ctx, tx, p.ID, p.Materials); err != nil {
			return err
		}

		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Transition locks the product row with its documents attached, lets fn
// decide, and persists the new status with its history entry atomically
func (r *productRepository) Transition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*domain.Product, error) {
	var product *domain.Product
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		p, err := lockProduct(ctx, tx, id)
		if err != nil {
			return err
		}

		entry, err := fn(p)
		if err != nil {
			return err
		}
		if entry == nil {
			product = p
			return nil
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE products SET status = $2, updated_at = $3 WHERE id = $1`,
			p.ID, entry.To, entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to update product status: %w", err)
		}
		if rows, err := result.RowsAffected(); err == nil && rows == 0 {
			return ErrProductNotFound
		}

		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}

		p.Status = entry.To
		p.UpdatedAt = entry.Timestamp
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID retrieves a product with images, materials and documents
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return loadProduct(ctx, r.db, id, false)
}

// ListByCompany lists products the company owns as brand owner or as
// manufacturer, newest first
func (r *productRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE (company_id = $1 OR manufacturer_id = $1)`
	args := []interface{}{companyID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	products := []*domain.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// History returns the status history in insertion order
func (r *productRepository) History(ctx context.Context, id uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, product_id, from_status, to_status, user_id, reason, created_at
		FROM product_status_history
		WHERE product_id = $1
		ORDER BY seq ASC
	`
	history := []domain.StatusHistoryEntry{}
	if err := r.db.SelectContext(ctx, &history, query, id); err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return history, nil
}

func (r *productRepository) FindMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error) {
	query := `
		SELECT id, product_id, name, percentage, recyclable, description, position
		FROM product_materials
		WHERE id = $1
	`
	m := &domain.Material{}
	if err := r.db.GetContext(ctx, m, query, materialID); err != nil {
		if isNoRows(err) {
			return nil, ErrMaterialNotFound
		}
		return nil, fmt.Errorf("failed to find material: %w", err)
	}
	return m, nil
}

func lockProduct(ctx context.Context, q queryer, id uuid.UUID) (*domain.Product, error) {
	return loadProduct(ctx, q, id, true)
}

func loadProduct(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p := &domain.Product{}
	if err := q.GetContext(ctx, p, query, id); err != nil {
		if isNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	images := []string{}
	if err := q.SelectContext(ctx, &images, `SELECT path FROM product_images WHERE product_id = $1 ORDER BY position ASC`, id); err != nil {
		return nil, fmt.Errorf("failed to load product images: %w", err)
	}
	p.Images = images

	materials := []domain.Material{}
	err := q.SelectContext(ctx, &materials, `
		SELECT id, product_id, name, percentage, recyclable, description, position
		FROM product_materials
		WHERE product_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product materials: %w", err)
	}
	p.Materials = materials

	docs := []*domain.Document{}
	if err := q.SelectContext(ctx, &docs, `SELECT `+documentColumns+` FROM documents WHERE product_id = $1 ORDER BY created_at ASC`, id); err != nil {
		return nil, fmt.Errorf("failed to load product documents: %w", err)
	}
	p.AttachDocuments(docs)

	return p, nil
}

func writeImages(ctx context.Context, q queryer, productID uuid.UUID, images []string) error {
	for i, path := range images {
		_, err := q.ExecContext(ctx,
			`INSERT INTO product_images (product_id, position, path) VALUES ($1, $2, $3)`,
			productID, i, path,
		)
		if err != nil {
			return fmt.Errorf("failed to write product image: %w", err)
		}
	}
	return nil
}

func writeMaterials(ctx context.Context, q queryer, productID uuid.UUID, materials []domain.Material) error {
	for i := range materials {
		m := &materials[i]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.ProductID = productID
		m.Position = i
		_, err := q.ExecContext(ctx, `
			INSERT INTO product_materials (id, product_id, name, percentage, recyclable, description, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				percentage = EXCLUDED.percentage,
				recyclable = EXCLUDED.recyclable,
				description = EXCLUDED.description,
				position = EXCLUDED.position
			WHERE product_materials.product_id = EXCLUDED.product_id
		`, m.ID, productID, m.Name, m.Percentage, m.Recyclable, m.Description, m.Position)
		if err != nil {
			return fmt.Errorf("failed to write product material: %w", err)
		}
	}
	return nil
}

// replaceMaterials keeps material ids stable so manufacturer assignments
// survive an edit; materials missing from the new list are removed.
func replaceMaterials(ctx context.Context, q queryer, productID uuid.UUID, materials []domain.Material) error {
	keep := make([]uuid.UUID, 0, len(materials))
	for _, m := range materials {
		if m.ID != uuid.Nil {
			keep = append(keep, m.ID)
		}
	}

	if len(keep) == 0 {
		if _, err := q.ExecContext(ctx, `DELETE FROM product_materials WHERE product_id = $1`, productID); err != nil {
			return fmt.Errorf("failed to clear product materials: %w", err)
		}
	} else {
		query, args, err := sqlx.In(`DELETE FROM product_materials WHERE product_id = ? AND id NOT IN (?)`, productID, keep)
		if err != nil {
			return fmt.Errorf("failed to build material delete: %w", err)
		}
		if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to prune product materials: %w", err)
		}
	}

	return writeMaterials(ctx, q, productID, materials)
}

func insertHistory(ctx context.Context, q queryer, entry *domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO product_status_history (id, product_id, from_status, to_status, user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query, entry.ID, entry.ProductID, entry.From, entry.To, entry.UserID, entry.Reason, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}
