package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the closed set of document review states.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
	DocumentExpired  DocumentStatus = "expired"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentApproved, DocumentRejected, DocumentExpired:
		return true
	}
	return false
}

// DocumentType is the closed set of supporting document kinds. The type also
// serves as the document category key on a product.
type DocumentType string

const (
	DocSignatureCircular    DocumentType = "signature_circular"
	DocTradeRegistryGazette DocumentType = "trade_registry_gazette"
	DocTaxPlate             DocumentType = "tax_plate"
	DocActivityCertificate  DocumentType = "activity_certificate"
	DocISOCertificate       DocumentType = "iso_certificate"
	DocQualityCertificate   DocumentType = "quality_certificate"
	DocExportCertificate    DocumentType = "export_certificate"
	DocProductionPermit     DocumentType = "production_permit"
)

var DocumentTypes = []DocumentType{
	DocSignatureCircular,
	DocTradeRegistryGazette,
	DocTaxPlate,
	DocActivityCertificate,
	DocISOCertificate,
	DocQualityCertificate,
	DocExportCertificate,
	DocProductionPermit,
}

func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type documentEdge struct {
	from DocumentStatus
	to   DocumentStatus
}

// documentTransitions is the canonical document transition table.
var documentTransitions = map[documentEdge]Capability{
	{DocumentPending, DocumentApproved}: CapabilityAdmin,
	{DocumentPending, DocumentRejected}: CapabilityAdmin,
	{DocumentRejected, DocumentPending}: CapabilityOwner,
	{DocumentPending, DocumentExpired}:  CapabilitySystem,
	{DocumentApproved, DocumentExpired}: CapabilitySystem,
}

func DocumentTransition(from, to DocumentStatus) (Capability, bool) {
	c, ok := documentTransitions[documentEdge{from, to}]
	return c, ok
}

// Document is a supporting file under review. RejectionReason is non-nil
// exactly when Status is rejected.
type Document struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	CompanyID       uuid.UUID      `json:"company_id" db:"company_id"`
	ProductID       *uuid.UUID     `json:"product_id,omitempty" db:"product_id"`
	Type            DocumentType   `json:"type" db:"type"`
	FilePath        string         `json:"file_path" db:"file_path"`
	Status          DocumentStatus `json:"status" db:"status"`
	RejectionReason *string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Version         int            `json:"version" db:"version"`
	ValidUntil      *time.Time     `json:"valid_until,omitempty" db:"valid_until"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// EffectiveStatus applies lazy expiry: a pending or approved document whose
// validity window has closed reads as expired.
func (d *Document) EffectiveStatus(now time.Time) DocumentStatus {
	if d.ValidUntil != nil && !now.Before(*d.ValidUntil) {
		if _, ok := DocumentTransition(d.Status, DocumentExpired); ok {
			return DocumentExpired
		}
	}
	return d.Status
}

// OwnedBy reports whether the company owns the document.
func (d *Document) OwnedBy(companyID uuid.UUID) bool {
	return d.CompanyID == companyID
}

// DocumentAuditEntry is one append-only fact in a document's history.
type DocumentAuditEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	DocumentID uuid.UUID       `json:"document_id" db:"document_id"`
	From       *DocumentStatus `json:"from,omitempty" db:"from_status"`
	To         DocumentStatus  `json:"to" db:"to_status"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	Reason     *string         `json:"reason,omitempty" db:"reason"`
	Version    int             `json:"version" db:"version"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
