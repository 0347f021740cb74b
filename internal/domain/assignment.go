package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaterialManufacturerAssignment binds one material to the company that
// produces it. There is at most one row per material.
type MaterialManufacturerAssignment struct {
	MaterialID     uuid.UUID `json:"material_id" db:"material_id"`
	ManufacturerID uuid.UUID `json:"manufacturer_id" db:"manufacturer_id"`
	AssignedBy     uuid.UUID `json:"assigned_by" db:"assigned_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type DistributorStatus string

const (
	DistributorPending  DistributorStatus = "pending"
	DistributorActive   DistributorStatus = "active"
	DistributorInactive DistributorStatus = "inactive"
)

// Open reports whether the assignment still occupies its product/distributor
// pair.
func (s DistributorStatus) Open() bool {
	return s == DistributorPending || s == DistributorActive
}

// CanMoveTo encodes pending -> active, pending|active -> inactive.
func (s DistributorStatus) CanMoveTo(next DistributorStatus) bool {
	switch next {
	case DistributorActive:
		return s == DistributorPending
	case DistributorInactive:
		return s.Open()
	}
	return false
}

// DistributorAssignment grants a distributor rights to sell a product.
type DistributorAssignment struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	ProductID      uuid.UUID         `json:"product_id" db:"product_id"`
	DistributorID  uuid.UUID         `json:"distributor_id" db:"distributor_id"`
	AssignedBy     uuid.UUID         `json:"assigned_by" db:"assigned_by"`
	Status         DistributorStatus `json:"status" db:"status"`
	Territory      *string           `json:"territory,omitempty" db:"territory"`
	CommissionRate *float64          `json:"commission_rate,omitempty" db:"commission_rate"`
	Notes          *string           `json:"notes,omitempty" db:"notes"`
	AssignedAt     time.Time         `json:"assigned_at" db:"assigned_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// DistributorOptions carries the optional terms of a distributor assignment.
type DistributorOptions struct {
	Territory      *string
	CommissionRate *float64
	Notes          *string
}

func (o DistributorOptions) Validate() error {
	if o.CommissionRate != nil && (*o.CommissionRate < 0 || *o.CommissionRate > 100) {
		return NewFieldError("commission_rate", "commission rate must be between 0 and 100")
	}
	return nil
}
