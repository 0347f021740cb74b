package service

import (
	"context"
	"errors"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/logger"
	"dpp-certification/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssignmentService is the Assignment Registry: material manufacturers and
// product distributors
type AssignmentService interface {
	AssignManufacturer(ctx context.Context, actor domain.Actor, materialID, manufacturerID uuid.UUID) (*domain.MaterialManufacturerAssignment, error)
	RemoveAssignment(ctx context.Context, actor domain.Actor, materialID uuid.UUID) error
	ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error)

	AssignDistributor(ctx context.Context, actor domain.Actor, productID, distributorID uuid.UUID, opts domain.DistributorOptions) (*domain.DistributorAssignment, error)
	ActivateDistributor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error)
	DeactivateDistributor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	products    repository.ProductRepository
	companies   repository.CompanyRepository
	notifier    *Notifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService creates a new instance of AssignmentService
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	products repository.ProductRepository,
	companies repository.CompanyRepository,
	notifier *Notifier,
	log *zap.Logger,
) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		products:    products,
		companies:   companies,
		notifier:    notifier,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AssignManufacturer binds a material to a manufacturer, replacing any
// existing binding
func (s *assignmentService) AssignManufacturer(ctx context.Context, actor domain.Actor, materialID, manufacturerID uuid.UUID) (*domain.MaterialManufacturerAssignment, error) {
	const op = "assignment.manufacturer"

	if err := s.authorizeMaterial(ctx, op, actor, materialID); err != nil {
		return nil, err
	}
	if err := s.requireKind(ctx, manufacturerID, domain.CompanyManufacturer, "manufacturer_id"); err != nil {
		return nil, err
	}

	now := s.now()
	result, err := s.assignments.UpsertManufacturer(ctx, &domain.MaterialManufacturerAssignment{
		MaterialID:     materialID,
		ManufacturerID: manufacturerID,
		AssignedBy:     actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, translate(op, err)
	}

	s.logger.Info("Material manufacturer assigned",
		zap.String("material_id", materialID.String()),
		zap.String("manufacturer_id", manufacturerID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	s.notifier.Committed(ctx, "material_assignment", domain.Event{
		Type:       domain.EventAssignmentChanged,
		EntityID:   materialID,
		To:         "assigned",
		ActorID:    actor.UserID,
		Reason:     "manufacturer " + manufacturerID.String(),
		OccurredAt: now,
	})
	return result, nil
}

// RemoveAssignment is idempotent: a material without a binding, or one that
// no longer exists, is not an error
func (s *assignmentService) RemoveAssignment(ctx context.Context, actor domain.Actor, materialID uuid.UUID) error {
	const op = "assignment.remove"

	if err := s.authorizeMaterial(ctx, op, actor, materialID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.assignments.DeleteManufacturer(ctx, materialID); err != nil {
		return translate(op, err)
	}

	s.logger.Info("Material manufacturer removed",
		zap.String("material_id", materialID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	s.notifier.Committed(ctx, "material_assignment", domain.Event{
		Type:     domain.EventAssignmentChanged,
		EntityID: materialID,
		To:       "removed",
		ActorID:  actor.UserID,
	})
	return nil
}

func (s *assignmentService) ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error) {
	list, err := s.assignments.ListForManufacturer(ctx, manufacturerID)
	if err != nil {
		return nil, translate("assignment.list_manufacturer", err)
	}
	return list, nil
}

// AssignDistributor opens a pending assignment. Only one pending or active
// assignment may exist per product and distributor.
func (s *assignmentService) AssignDistributor(ctx context.Context, actor domain.Actor, productID, distributorID uuid.UUID, opts domain.DistributorOptions) (*domain.DistributorAssignment, error) {
	const op = "assignment.distributor"

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorizeProduct(ctx, op, actor, productID); err != nil {
		return nil, err
	}
	if err := s.requireKind(ctx, distributorID, domain.CompanyDistributor, "distributor_id"); err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.DistributorAssignment{
		ID:             uuid.New(),
		ProductID:      productID,
		DistributorID:  distributorID,
		AssignedBy:     actor.UserID,
		Status:         domain.DistributorPending,
		Territory:      opts.Territory,
		CommissionRate: opts.CommissionRate,
		Notes:          opts.Notes,
		AssignedAt:     now,
		UpdatedAt:      now,
	}
	if err := s.assignments.CreateDistributor(ctx, a); err != nil {
		err = translate(op, err)
		s.notifier.Refused("distributor_assignment", err)
		return nil, err
	}

	s.logger.Info("Distributor assigned",
		zap.String("assignment_id", a.ID.String()),
		zap.String("product_id", productID.String()),
		zap.String("distributor_id", distributorID.String()),
		zap.String("actor_id", actor.UserID.String()),
	)
	s.notifier.Committed(ctx, "distributor_assignment", domain.Event{
		Type:       domain.EventAssignmentChanged,
		EntityID:   a.ID,
		To:         string(a.Status),
		ActorID:    actor.UserID,
		OccurredAt: now,
	})
	return a, nil
}

func (s *assignmentService) ActivateDistributor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error) {
	return s.moveDistributor(ctx, "assignment.activate", actor, id, domain.DistributorActive)
}

func (s *assignmentService) DeactivateDistributor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error) {
	return s.moveDistributor(ctx, "assignment.deactivate", actor, id, domain.DistributorInactive)
}

func (s *assignmentService) moveDistributor(ctx context.Context, op string, actor domain.Actor, id uuid.UUID, to domain.DistributorStatus) (*domain.DistributorAssignment, error) {
	existing, err := s.assignments.FindDistributor(ctx, id)
	if err != nil {
		return nil, translate(op, err)
	}
	if err := s.authorizeProduct(ctx, op, actor, existing.ProductID); err != nil {
		return nil, err
	}

	var from domain.DistributorStatus
	a, err := s.assignments.UpdateDistributor(ctx, id, func(a *domain.DistributorAssignment) (bool, error) {
		if a.Status == to {
			return false, nil
		}
		if !a.Status.CanMoveTo(to) {
			return false, &domain.TransitionError{Entity: "distributor_assignment", From: string(a.Status), To: string(to)}
		}
		from = a.Status
		a.Status = to
		a.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		err = translate(op, err)
		s.notifier.Refused("distributor_assignment", err)
		return nil, err
	}

	if from != "" {
		s.logger.Info("Distributor assignment status changed",
			logger.Transition("distributor_assignment", id.String(), string(from), string(to), actor.UserID.String())...,
		)
		s.notifier.Committed(ctx, "distributor_assignment", domain.Event{
			Type:       domain.EventAssignmentChanged,
			EntityID:   id,
			From:       string(from),
			To:         string(to),
			ActorID:    actor.UserID,
			OccurredAt: a.UpdatedAt,
		})
	}
	return a, nil
}

func (s *assignmentService) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error) {
	list, err := s.assignments.ListForProduct(ctx, productID)
	if err != nil {
		return nil, translate("assignment.list_product", err)
	}
	return list, nil
}

func (s *assignmentService) authorizeMaterial(ctx context.Context, op string, actor domain.Actor, materialID uuid.UUID) error {
	material, err := s.products.FindMaterial(ctx, materialID)
	if err != nil {
		return translate(op, err)
	}
	return s.authorizeProduct(ctx, op, actor, material.ProductID)
}

func (s *assignmentService) authorizeProduct(ctx context.Context, op string, actor domain.Actor, productID uuid.UUID) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return translate(op, err)
	}
	if !actor.IsAdmin() && !product.OwnedBy(actor.CompanyID) {
		return forbidden(op, "actor has no authority over this product")
	}
	return nil
}

// requireKind checks that the referenced company exists and plays the
// expected role
func (s *assignmentService) requireKind(ctx context.Context, id uuid.UUID, kind domain.CompanyKind, field string) error {
	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		return translate("assignment.company", err)
	}
	if company.Kind != kind {
		return domain.NewFieldError(field, "company is not a "+string(kind))
	}
	return nil
}
