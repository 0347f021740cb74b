package domain

import "strings"

// ProductStatus is the closed set of product lifecycle states.
type ProductStatus string

const (
	ProductDraft    ProductStatus = "DRAFT"
	ProductNew      ProductStatus = "NEW"
	ProductPending  ProductStatus = "PENDING"
	ProductApproved ProductStatus = "APPROVED"
	ProductRejected ProductStatus = "REJECTED"
	ProductArchived ProductStatus = "ARCHIVED"
	ProductDeleted  ProductStatus = "DELETED"
)

// AutoTransitionReason tags the history entry written by the DRAFT -> NEW
// auto-transition.
const AutoTransitionReason = "Auto-transition: All required fields present"

// ProductStatuses lists every state in lifecycle order.
var ProductStatuses = []ProductStatus{
	ProductDraft,
	ProductNew,
	ProductPending,
	ProductApproved,
	ProductRejected,
	ProductArchived,
	ProductDeleted,
}

func (s ProductStatus) Valid() bool {
	for _, known := range ProductStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseProductStatus accepts any casing of a known status.
func ParseProductStatus(raw string) (ProductStatus, error) {
	s := ProductStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", NewFieldError("status", "unknown product status "+raw)
	}
	return s, nil
}

// Capability is a bit set of the parties allowed to trigger a transition.
type Capability uint8

const (
	CapabilitySystem Capability = 1 << iota
	CapabilityOwner
	CapabilityAdmin
)

func (c Capability) Allows(other Capability) bool {
	return c&other != 0
}

type productEdge struct {
	from ProductStatus
	to   ProductStatus
}

// productTransitions is the canonical product transition table. Moves into
// DELETED are handled separately because every non-deleted state may be
// soft-deleted by its owner.
var productTransitions = map[productEdge]Capability{
	{ProductDraft, ProductNew}:         CapabilitySystem | CapabilityOwner,
	{ProductNew, ProductPending}:       CapabilityOwner,
	{ProductPending, ProductApproved}:  CapabilityAdmin,
	{ProductPending, ProductRejected}:  CapabilityAdmin,
	{ProductRejected, ProductPending}:  CapabilityOwner,
	{ProductApproved, ProductArchived}: CapabilityOwner | CapabilityAdmin,
}

// ProductTransition returns who may move a product from one state to
// another, and false when the move is not in the table.
func ProductTransition(from, to ProductStatus) (Capability, bool) {
	if !from.Valid() || !to.Valid() {
		return 0, false
	}
	if to == ProductDeleted {
		if from == ProductDeleted {
			return 0, false
		}
		return CapabilityOwner, true
	}
	c, ok := productTransitions[productEdge{from, to}]
	return c, ok
}

// CanTransitionProduct reports whether the table contains from -> to.
func CanTransitionProduct(from, to ProductStatus) bool {
	_, ok := ProductTransition(from, to)
	return ok
}

// RequiresReason reports whether entering the status needs a caller reason.
func (s ProductStatus) RequiresReason() bool {
	return s == ProductRejected
}

func (s ProductStatus) Terminal() bool {
	return s == ProductDeleted
}

// Editable reports whether product fields may still be changed.
func (s ProductStatus) Editable() bool {
	switch s {
	case ProductDraft, ProductNew, ProductRejected:
		return true
	}
	return false
}
