package cache

import (
	"context"

	"dpp-certification/internal/domain"
)

// ProductTypeCache holds product type definitions and their required
// document categories. A miss is reported as (nil, false, nil).
type ProductTypeCache interface {
	Get(ctx context.Context, code string) (*domain.ProductType, bool, error)
	Set(ctx context.Context, pt *domain.ProductType) error
	Invalidate(ctx context.Context, code string) error
}

func key(code string) string {
	return "product_type:" + code
}
