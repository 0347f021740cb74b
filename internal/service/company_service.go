package service

import (
	"context"
	"strings"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CompanyInput carries the fields of a company registration
type CompanyInput struct {
	Name      string
	Kind      domain.CompanyKind
	TaxNumber string
}

// CompanyService is the company registry
type CompanyService interface {
	Register(ctx context.Context, actor domain.Actor, input CompanyInput) (*domain.Company, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	List(ctx context.Context, kind *domain.CompanyKind) ([]*domain.Company, error)
}

type companyService struct {
	companies repository.CompanyRepository
	logger    *zap.Logger
}

// NewCompanyService creates a new instance of CompanyService
func NewCompanyService(companies repository.CompanyRepository, log *zap.Logger) CompanyService {
	return &companyService{companies: companies, logger: log}
}

func (s *companyService) Register(ctx context.Context, actor domain.Actor, input CompanyInput) (*domain.Company, error) {
	const op = "company.register"

	if !actor.IsAdmin() {
		return nil, forbidden(op, "only an admin may register companies")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewFieldError("name", "name is required")
	}
	if !input.Kind.Valid() {
		return nil, domain.NewFieldError("kind", "unknown company kind "+string(input.Kind))
	}

	now := time.Now().UTC()
	company := &domain.Company{
		ID:        uuid.New(),
		Name:      name,
		Kind:      input.Kind,
		TaxNumber: strings.TrimSpace(input.TaxNumber),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, translate(op, err)
	}

	s.logger.Info("Company registered",
		zap.String("company_id", company.ID.String()),
		zap.String("kind", string(company.Kind)),
	)
	return company, nil
}

func (s *companyService) Get(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		return nil, translate("company.get", err)
	}
	return company, nil
}

func (s *companyService) List(ctx context.Context, kind *domain.CompanyKind) ([]*domain.Company, error) {
	if kind != nil && !kind.Valid() {
		return nil, domain.NewFieldError("kind", "unknown company kind "+string(*kind))
	}
	companies, err := s.companies.List(ctx, kind)
	if err != nil {
		return nil, translate("company.list", err)
	}
	return companies, nil
}
