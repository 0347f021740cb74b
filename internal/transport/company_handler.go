package transport

import (
	"net/http"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"
	"dpp-certification/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterCompanyRequest represents the company registration payload
type RegisterCompanyRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	Kind      string `json:"kind" validate:"required,company_kind"`
	TaxNumber string `json:"tax_number" validate:"max=64"`
}

// CompanyHandler handles HTTP requests for the company registry
type CompanyHandler struct {
	companies service.CompanyService
	logger    *zap.Logger
}

func NewCompanyHandler(companies service.CompanyService, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, logger: logger}
}

// RegisterRoutes registers company routes on an authenticated router
func (h *CompanyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/companies", func(r chi.Router) {
		r.With(middleware.RequireAdmin(h.logger)).Post("/", h.Register)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

func (h *CompanyHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req RegisterCompanyRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	company, err := h.companies.Register(r.Context(), actor, service.CompanyInput{
		Name:      req.Name,
		Kind:      domain.CompanyKind(req.Kind),
		TaxNumber: req.TaxNumber,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, company)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	company, err := h.companies.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	var kind *domain.CompanyKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := domain.CompanyKind(raw)
		kind = &k
	}
	companies, err := h.companies.List(r.Context(), kind)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, companies)
}
