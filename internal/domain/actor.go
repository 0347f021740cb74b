package domain

import "github.com/google/uuid"

// Role is the capability class carried in the caller's token.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleBrandOwner   Role = "brand_owner"
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBrandOwner, RoleManufacturer, RoleDistributor:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of a mutating operation.
type Actor struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
