package service

import (
	"context"
	"errors"

	"dpp-certification/internal/cache"
	"dpp-certification/internal/domain"
	"dpp-certification/internal/repository"

	"go.uber.org/zap"
)

// RequirementCatalog resolves which document categories a product type
// requires, reading through the injected cache.
type RequirementCatalog struct {
	types  repository.ProductTypeRepository
	cache  cache.ProductTypeCache
	logger *zap.Logger
}

func NewRequirementCatalog(types repository.ProductTypeRepository, c cache.ProductTypeCache, logger *zap.Logger) *RequirementCatalog {
	return &RequirementCatalog{types: types, cache: c, logger: logger}
}

// Lookup returns the product type or repository.ErrProductTypeNotFound.
// Cache failures degrade to a database read.
func (c *RequirementCatalog) Lookup(ctx context.Context, code string) (*domain.ProductType, error) {
	if c.cache != nil {
		pt, ok, err := c.cache.Get(ctx, code)
		if err != nil {
			c.logger.Warn("Product type cache read failed", zap.String("product_type", code), zap.Error(err))
		} else if ok {
			return pt, nil
		}
	}

	pt, err := c.types.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, pt); err != nil {
			c.logger.Warn("Product type cache write failed", zap.String("product_type", code), zap.Error(err))
		}
	}
	return pt, nil
}

// Required returns the required categories for code. An empty or unknown
// code requires nothing; the eligibility check reports it separately.
func (c *RequirementCatalog) Required(ctx context.Context, code string) ([]domain.DocumentType, error) {
	if code == "" {
		return nil, nil
	}
	pt, err := c.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrProductTypeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return pt.RequiredDocuments, nil
}

func (c *RequirementCatalog) List(ctx context.Context) ([]*domain.ProductType, error) {
	return c.types.List(ctx)
}
