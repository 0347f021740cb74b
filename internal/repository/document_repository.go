package repository

import (
	"context"
	"errors"
	"fmt"

	"dpp-certification/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrDocumentNotFound = errors.New("document not found")

// MutateFunc inspects the locked document, mutates it and returns the audit
// entry to append. A nil entry with a nil error leaves the row untouched.
type MutateFunc func(doc *domain.Document) (*domain.DocumentAuditEntry, error)

// DocumentRepository defines the interface for document data access
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document, entry *domain.DocumentAuditEntry) error
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*domain.Document, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Document, error)
	ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Document, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Document, error)
	AuditLog(ctx context.Context, id uuid.UUID) ([]domain.DocumentAuditEntry, error)
}

type documentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository
func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, company_id, product_id, type, file_path, status, rejection_reason, version, valid_until, created_at, updated_at`

// Create writes the document row and its first audit entry atomically
func (r *documentRepository) Create(ctx context.Context, doc *domain.Document, entry *domain.DocumentAuditEntry) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO documents (id, company_id, product_id, type, file_path, status, rejection_reason, version, valid_until, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(
			ctx,
			query,
			doc.ID,
			doc.CompanyID,
			doc.ProductID,
			doc.Type,
			doc.FilePath,
			doc.Status,
			doc.RejectionReason,
			doc.Version,
			doc.ValidUntil,
			doc.CreatedAt,
			doc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		return insertAudit(ctx, tx, entry)
	})
}

// Mutate is the single read-modify-write path for document transitions.
// The row stays locked until the audit entry is written.
func (r *documentRepository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*domain.Document, error) {
	var doc *domain.Document
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		d := &domain.Document{}
		err := tx.GetContext(ctx, d, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if isNoRows(err) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("failed to lock document: %w", err)
		}

		entry, err := fn(d)
		if err != nil {
			return err
		}
		if entry == nil {
			doc = d
			return nil
		}

		query := `
			UPDATE documents
			SET status = $2, rejection_reason = $3, version = $4, file_path = $5, updated_at = $6
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, query, d.ID, d.Status, d.RejectionReason, d.Version, d.FilePath, d.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}

		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc := &domain.Document{}
	if err := r.db.GetContext(ctx, doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document by ID: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE product_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &docs, query, productID); err != nil {
		return nil, fmt.Errorf("failed to list product documents: %w", err)
	}
	return docs, nil
}

// ListByProducts loads the documents of several products in one round trip
func (r *documentRepository) ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	if len(productIDs) == 0 {
		return docs, nil
	}

	query, args, err := sqlx.In(`SELECT `+documentColumns+` FROM documents WHERE product_id IN (?) ORDER BY created_at ASC`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build document query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE company_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &docs, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list company documents: %w", err)
	}
	return docs, nil
}

// AuditLog returns the document's audit trail in insertion order
func (r *documentRepository) AuditLog(ctx context.Context, id uuid.UUID) ([]domain.DocumentAuditEntry, error) {
	query := `
		SELECT id, document_id, from_status, to_status, actor_id, reason, version, created_at
		FROM document_audit_log
		WHERE document_id = $1
		ORDER BY seq ASC
	`
	entries := []domain.DocumentAuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, id); err != nil {
		return nil, fmt.Errorf("failed to load document audit log: %w", err)
	}
	return entries, nil
}

func insertAudit(ctx context.Context, q queryer, entry *domain.DocumentAuditEntry) error {
	query := `
		INSERT INTO document_audit_log (id, document_id, from_status, to_status, actor_id, reason, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query, entry.ID, entry.DocumentID, entry.From, entry.To, entry.ActorID, entry.Reason, entry.Version, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append document audit entry: %w", err)
	}
	return nil
}
