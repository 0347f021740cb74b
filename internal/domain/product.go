package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product moving through certification
type Product struct {
	ID             uuid.UUID                    `json:"id" db:"id"`
	Name           string                       `json:"name" db:"name"`
	Model          string                       `json:"model" db:"model"`
	Description    string                       `json:"description" db:"description"`
	ProductType    string                       `json:"product_type" db:"product_type"`
	CompanyID      uuid.UUID                    `json:"company_id" db:"company_id"`
	ManufacturerID *uuid.UUID                   `json:"manufacturer_id,omitempty" db:"manufacturer_id"`
	Status         ProductStatus                `json:"status" db:"status"`
	Images         []string                     `json:"images" db:"-"`
	Materials      []Material                   `json:"materials" db:"-"`
	Documents      map[DocumentType][]*Document `json:"documents" db:"-"`
	StatusHistory  []StatusHistoryEntry         `json:"status_history" db:"-"`
	CreatedAt      time.Time                    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at" db:"updated_at"`
}

// OwnedBy reports whether the company is the brand owner or the named
// manufacturer of the product.
func (p *Product) OwnedBy(companyID uuid.UUID) bool {
	if p.CompanyID == companyID {
		return true
	}
	return p.ManufacturerID != nil && *p.ManufacturerID == companyID
}

// AttachDocuments groups documents by category key.
func (p *Product) AttachDocuments(docs []*Document) {
	p.Documents = make(map[DocumentType][]*Document)
	for _, d := range docs {
		p.Documents[d.Type] = append(p.Documents[d.Type], d)
	}
}

// Material is one disclosed component of a product.
type Material struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	Name        string    `json:"name" db:"name"`
	Percentage  float64   `json:"percentage" db:"percentage"`
	Recyclable  bool      `json:"recyclable" db:"recyclable"`
	Description string    `json:"description" db:"description"`
	Position    int       `json:"-" db:"position"`
}

// Validate checks the per-material range rule. Percentages across a product
// need not sum to 100.
func (m Material) Validate() error {
	if m.Name == "" {
		return NewFieldError("materials.name", "material name is required")
	}
	if m.Percentage < 0 || m.Percentage > 100 {
		return NewFieldError("materials.percentage", "percentage must be between 0 and 100")
	}
	return nil
}

// StatusHistoryEntry is one append-only status change. From is nil for the
// creation entry.
type StatusHistoryEntry struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	ProductID uuid.UUID      `json:"product_id" db:"product_id"`
	From      *ProductStatus `json:"from,omitempty" db:"from_status"`
	To        ProductStatus  `json:"to" db:"to_status"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Reason    *string        `json:"reason,omitempty" db:"reason"`
	Timestamp time.Time      `json:"timestamp" db:"created_at"`
}

// ProductType is a catalogue entry naming the document categories a product
// of that type must carry.
type ProductType struct {
	Code              string         `json:"code" db:"code"`
	Name              string         `json:"name" db:"name"`
	Description       string         `json:"description" db:"description"`
	RequiredDocuments []DocumentType `json:"required_documents" db:"-"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}
