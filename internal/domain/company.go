package domain

import (
	"time"

	"github.com/google/uuid"
)

type CompanyKind string

const (
	CompanyBrandOwner   CompanyKind = "brand_owner"
	CompanyManufacturer CompanyKind = "manufacturer"
	CompanyDistributor  CompanyKind = "distributor"
	CompanyAdmin        CompanyKind = "admin"
)

func (k CompanyKind) Valid() bool {
	switch k {
	case CompanyBrandOwner, CompanyManufacturer, CompanyDistributor, CompanyAdmin:
		return true
	}
	return false
}

// Company is a registered party: brand owner, manufacturer, distributor or
// the certifying authority itself.
type Company struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Kind      CompanyKind `json:"kind" db:"kind"`
	TaxNumber string      `json:"tax_number" db:"tax_number"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}
