package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/logger"
	"dpp-certification/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductInput carries the editable fields of a product
type ProductInput struct {
	Name           string
	Model          string
	Description    string
	ProductType    string
	ManufacturerID *uuid.UUID
	Images         []string
	Materials      []domain.Material
}

// ProductService is the Product Lifecycle Manager
type ProductService interface {
	Create(ctx context.Context, actor domain.Actor, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, actor domain.Actor, companyID *uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error)
	ValidateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Eligibility, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.ProductStatus, reason string) (*domain.Product, error)
	History(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.StatusHistoryEntry, error)
	ProductTypes(ctx context.Context) ([]*domain.ProductType, error)

	// Reevaluate runs the DRAFT -> NEW auto-transition if the product has
	// become eligible. It is a no-op for every other status.
	Reevaluate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Product, error)
}

type productService struct {
	products  repository.ProductRepository
	documents repository.DocumentRepository
	companies repository.CompanyRepository
	catalog   *RequirementCatalog
	notifier  *Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	documents repository.DocumentRepository,
	companies repository.CompanyRepository,
	catalog *RequirementCatalog,
	notifier *Notifier,
	log *zap.Logger,
) ProductService {
	return &productService{
		products:  products,
		documents: documents,
		companies: companies,
		catalog:   catalog,
		notifier:  notifier,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a DRAFT product and immediately checks whether it may move
// to NEW
func (s *productService) Create(ctx context.Context, actor domain.Actor, input ProductInput) (*domain.Product, error) {
	const op = "product.create"

	if actor.Role != domain.RoleBrandOwner && actor.Role != domain.RoleManufacturer {
		return nil, forbidden(op, "only brand owners and manufacturers create products")
	}
	if err := s.validateInput(ctx, actor.CompanyID, &input); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(input.Name),
		Model:          strings.TrimSpace(input.Model),
		Description:    input.Description,
		ProductType:    input.ProductType,
		CompanyID:      actor.CompanyID,
		ManufacturerID: input.ManufacturerID,
		Status:         domain.ProductDraft,
		Images:         input.Images,
		Materials:      input.Materials,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	entry := &domain.StatusHistoryEntry{
		ID:        uuid.New(),
		ProductID: product.ID,
		To:        domain.ProductDraft,
		UserID:    actor.UserID,
		Timestamp: now,
	}

	if err := s.products.Create(ctx, product, entry); err != nil {
		return nil, translate(op, err)
	}
	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("company_id", product.CompanyID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	s.notifier.Committed(ctx, "product", domain.Event{
		Type:     domain.EventProductStatus,
		EntityID: product.ID,
		To:       string(domain.ProductDraft),
		ActorID:  actor.UserID,
	})

	// The product is committed; a failed check leaves it DRAFT until the
	// next mutation re-runs it.
	if _, err := s.Reevaluate(ctx, product.ID, actor.UserID); err != nil {
		s.logger.Warn("Failed to evaluate new product eligibility",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
	}
	return s.load(ctx, product.ID)
}

// Update replaces the editable fields while the product is still editable
// and re-runs the eligibility check
func (s *productService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	const op = "product.update"

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(op, err)
	}
	if !existing.OwnedBy(actor.CompanyID) {
		return nil, forbidden(op, "only the product owner may edit it")
	}
	if err := s.validateInput(ctx, existing.CompanyID, &input); err != nil {
		return nil, err
	}

	_, err = s.products.Edit(ctx, id, func(p *domain.Product) error {
		if !p.OwnedBy(actor.CompanyID) {
			return forbidden(op, "only the product owner may edit it")
		}
		if !p.Status.Editable() {
			return domain.WrapError(domain.ErrConflict, op, fmt.Errorf("product in status %s cannot be edited", p.Status))
		}
		p.Name = strings.TrimSpace(input.Name)
		p.Model = strings.TrimSpace(input.Model)
		p.Description = input.Description
		p.ProductType = input.ProductType
		p.ManufacturerID = input.ManufacturerID
		p.Images = input.Images
		p.Materials = input.Materials
		return nil
	})
	if err != nil {
		return nil, translate(op, err)
	}

	if _, err := s.Reevaluate(ctx, id, actor.UserID); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *productService) validateInput(ctx context.Context, ownerID uuid.UUID, input *ProductInput) error {
	for _, m := range input.Materials {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if input.Images == nil {
		input.Images = []string{}
	}
	for _, img := range input.Images {
		if strings.TrimSpace(img) == "" {
			return domain.NewFieldError("images", "image path must not be blank")
		}
	}

	input.ProductType = strings.TrimSpace(input.ProductType)
	if input.ProductType != "" {
		if _, err := s.catalog.Lookup(ctx, input.ProductType); err != nil {
			if errors.Is(err, repository.ErrProductTypeNotFound) {
				return domain.NewFieldError("product_type", "unknown product type "+input.ProductType)
			}
			return err
		}
	}

	// manufacturer_id is only kept when it differs from the brand owner
	if input.ManufacturerID != nil {
		if *input.ManufacturerID == ownerID {
			input.ManufacturerID = nil
			return nil
		}
		company, err := s.companies.FindByID(ctx, *input.ManufacturerID)
		if err != nil {
			if errors.Is(err, repository.ErrCompanyNotFound) {
				return domain.NewFieldError("manufacturer_id", "manufacturer does not exist")
			}
			return err
		}
		if company.Kind != domain.CompanyManufacturer {
			return domain.NewFieldError("manufacturer_id", "company is not a manufacturer")
		}
	}
	return nil
}

// Get returns the product with documents, materials and history
func (s *productService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Product, error) {
	p, err := s.authorized(ctx, "product.get", actor, id)
	if err != nil {
		return nil, err
	}
	history, err := s.products.History(ctx, id)
	if err != nil {
		return nil, translate("product.get", err)
	}
	p.StatusHistory = history
	s.applyExpiry(p)
	return p, nil
}

func (s *productService) List(ctx context.Context, actor domain.Actor, companyID *uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error) {
	const op = "product.list"

	target := actor.CompanyID
	if companyID != nil && *companyID != actor.CompanyID {
		if !actor.IsAdmin() {
			return nil, forbidden(op, "cannot list another company's products")
		}
		target = *companyID
	}
	if status != nil && !status.Valid() {
		return nil, domain.NewFieldError("status", "unknown product status "+string(*status))
	}

	products, err := s.products.ListByCompany(ctx, target, status)
	if err != nil {
		return nil, translate(op, err)
	}

	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	docs, err := s.documents.ListByProducts(ctx, ids)
	if err != nil {
		return nil, translate(op, err)
	}

	byProduct := make(map[uuid.UUID][]*domain.Document, len(products))
	for _, d := range docs {
		if d.ProductID != nil {
			byProduct[*d.ProductID] = append(byProduct[*d.ProductID], d)
		}
	}
	for _, p := range products {
		p.AttachDocuments(byProduct[p.ID])
		s.applyExpiry(p)
	}
	return products, nil
}

// ValidateStatus is the side-effect free eligibility report
func (s *productService) ValidateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Eligibility, error) {
	p, err := s.authorized(ctx, "product.validate", actor, id)
	if err != nil {
		return domain.Eligibility{}, err
	}
	return s.eligibility(ctx, p)
}

func (s *productService) eligibility(ctx context.Context, p *domain.Product) (domain.Eligibility, error) {
	required, err := s.catalog.Required(ctx, p.ProductType)
	if err != nil {
		return domain.Eligibility{}, err
	}
	return domain.ValidateStatus(p, required, s.now()), nil
}

// UpdateStatus performs a manual transition. Repeating a call for a product
// already in the target status is a no-op.
func (s *productService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.ProductStatus, reason string) (*domain.Product, error) {
	const op = "product.update_status"

	if !to.Valid() {
		return nil, domain.NewFieldError("status", "unknown product status "+string(to))
	}
	reason = strings.TrimSpace(reason)

	var written *domain.StatusHistoryEntry
	p, err := s.products.Transition(ctx, id, func(p *domain.Product) (*domain.StatusHistoryEntry, error) {
		owner := p.OwnedBy(actor.CompanyID)
		if !owner && !actor.IsAdmin() {
			return nil, forbidden(op, "actor has no authority over this product")
		}
		if p.Status == to {
			return nil, nil
		}

		allowed, ok := domain.ProductTransition(p.Status, to)
		if !ok {
			return nil, &domain.TransitionError{Entity: "product", From: string(p.Status), To: string(to)}
		}
		var held domain.Capability
		if owner {
			held |= domain.CapabilityOwner
		}
		if actor.IsAdmin() {
			held |= domain.CapabilityAdmin
		}
		if !allowed.Allows(held) {
			return nil, forbidden(op, fmt.Sprintf("actor may not move product from %s to %s", p.Status, to))
		}
		if to.RequiresReason() && reason == "" {
			return nil, domain.NewFieldError("reason", "a reason is required to reject a product")
		}

		if to == domain.ProductPending || (p.Status == domain.ProductDraft && to == domain.ProductNew) {
			result, err := s.eligibility(ctx, p)
			if err != nil {
				return nil, err
			}
			if missing := result.FirstMissing(); missing != nil {
				return nil, missing
			}
			if to == domain.ProductNew && reason == "" {
				reason = domain.AutoTransitionReason
			}
		}

		written = s.historyEntry(p, to, actor.UserID, reason)
		return written, nil
	})
	if err != nil {
		err = translate(op, err)
		s.notifier.Refused("product", err)
		s.logger.Debug("Product transition refused",
			zap.String("product_id", id.String()),
			zap.String("to", string(to)),
			zap.String("actor_id", actor.UserID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if written != nil {
		s.committed(ctx, written)
	}
	s.applyExpiry(p)
	return p, nil
}

func (s *productService) Reevaluate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Product, error) {
	const op = "product.reevaluate"

	var written *domain.StatusHistoryEntry
	p, err := s.products.Transition(ctx, id, func(p *domain.Product) (*domain.StatusHistoryEntry, error) {
		if p.Status != domain.ProductDraft {
			return nil, nil
		}
		result, err := s.eligibility(ctx, p)
		if err != nil {
			return nil, err
		}
		if !result.Eligible {
			return nil, nil
		}
		written = s.historyEntry(p, domain.ProductNew, actorID, domain.AutoTransitionReason)
		return written, nil
	})
	if err != nil {
		return nil, translate(op, err)
	}

	if written != nil {
		s.committed(ctx, written)
	}
	return p, nil
}

func (s *productService) History(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.authorized(ctx, "product.history", actor, id); err != nil {
		return nil, err
	}
	history, err := s.products.History(ctx, id)
	if err != nil {
		return nil, translate("product.history", err)
	}
	return history, nil
}

func (s *productService) ProductTypes(ctx context.Context) ([]*domain.ProductType, error) {
	types, err := s.catalog.List(ctx)
	if err != nil {
		return nil, translate("product.types", err)
	}
	return types, nil
}

func (s *productService) authorized(ctx context.Context, op string, actor domain.Actor, id uuid.UUID) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(op, err)
	}
	if !actor.IsAdmin() && !p.OwnedBy(actor.CompanyID) {
		return nil, forbidden(op, "actor has no authority over this product")
	}
	return p, nil
}

func (s *productService) load(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate("product.load", err)
	}
	s.applyExpiry(p)
	return p, nil
}

// applyExpiry reports documents past their validity window as expired
// without writing anything back.
func (s *productService) applyExpiry(p *domain.Product) {
	now := s.now()
	for _, docs := range p.Documents {
		for _, d := range docs {
			d.Status = d.EffectiveStatus(now)
		}
	}
}

func (s *productService) historyEntry(p *domain.Product, to domain.ProductStatus, actorID uuid.UUID, reason string) *domain.StatusHistoryEntry {
	from := p.Status
	entry := &domain.StatusHistoryEntry{
		ID:        uuid.New(),
		ProductID: p.ID,
		From:      &from,
		To:        to,
		UserID:    actorID,
		Timestamp: s.now(),
	}
	if reason != "" {
		entry.Reason = &reason
	}
	return entry
}

func (s *productService) committed(ctx context.Context, entry *domain.StatusHistoryEntry) {
	from := ""
	if entry.From != nil {
		from = string(*entry.From)
	}
	reason := ""
	if entry.Reason != nil {
		reason = *entry.Reason
	}

	s.logger.Info("Product status changed",
		logger.Transition("product", entry.ProductID.String(), from, string(entry.To), entry.UserID.String())...,
	)
	s.notifier.Committed(ctx, "product", domain.Event{
		Type:       domain.EventProductStatus,
		EntityID:   entry.ProductID,
		From:       from,
		To:         string(entry.To),
		ActorID:    entry.UserID,
		Reason:     reason,
		OccurredAt: entry.Timestamp,
	})
}
