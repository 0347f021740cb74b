package domain

import (
	"strings"
	"time"
)

// Eligibility is the outcome of the DRAFT -> NEW readiness check. Missing
// holds field names and document categories in a stable order.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Missing  []string `json:"missing,omitempty"`
}

// FirstMissing returns the first unmet requirement as a field error.
func (e Eligibility) FirstMissing() *FieldError {
	if e.Eligible || len(e.Missing) == 0 {
		return nil
	}
	field := e.Missing[0]
	return NewFieldError(field, field+" is required")
}

// ValidateStatus evaluates the readiness rule against a product whose
// documents are attached. It has no side effects.
//
// A product is ready when name, model, product type and at least one image
// are present and every required category holds a document that is not
// rejected. Pending documents count; expired ones do not.
func ValidateStatus(p *Product, required []DocumentType, now time.Time) Eligibility {
	var missing []string

	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Model) == "" {
		missing = append(missing, "model")
	}
	if strings.TrimSpace(p.ProductType) == "" {
		missing = append(missing, "product_type")
	}
	if len(p.Images) == 0 {
		missing = append(missing, "images")
	}

	for _, category := range required {
		if !hasLiveDocument(p.Documents[category], now) {
			missing = append(missing, "documents."+string(category))
		}
	}

	return Eligibility{Eligible: len(missing) == 0, Missing: missing}
}

func hasLiveDocument(docs []*Document, now time.Time) bool {
	for _, d := range docs {
		switch d.EffectiveStatus(now) {
		case DocumentPending, DocumentApproved:
			return true
		}
	}
	return false
}
