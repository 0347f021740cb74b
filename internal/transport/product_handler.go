package transport

import (
	"net/http"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"
	"dpp-certification/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaterialRequest is one material row of a product payload. ID is set when
// an existing material is kept.
type MaterialRequest struct {
	ID          string  `json:"id" validate:"omitempty,uuid"`
	Name        string  `json:"name" validate:"required,max=255"`
	Percentage  float64 `json:"percentage" validate:"gte=0,lte=100"`
	Recyclable  bool    `json:"recyclable"`
	Description string  `json:"description"`
}

// ProductRequest represents the create and update payload
type ProductRequest struct {
	Name           string            `json:"name" validate:"max=255"`
	Model          string            `json:"model" validate:"max=255"`
	Description    string            `json:"description"`
	ProductType    string            `json:"product_type" validate:"max=64"`
	ManufacturerID string            `json:"manufacturer_id" validate:"omitempty,uuid"`
	Images         []string          `json:"images" validate:"dive,required"`
	Materials      []MaterialRequest `json:"materials" validate:"dive"`
}

// StatusRequest represents a manual status transition
type StatusRequest struct {
	Status string `json:"status" validate:"required,product_status"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (req ProductRequest) input() service.ProductInput {
	input := service.ProductInput{
		Name:        req.Name,
		Model:       req.Model,
		Description: req.Description,
		ProductType: req.ProductType,
		Images:      req.Images,
		Materials:   make([]domain.Material, 0, len(req.Materials)),
	}
	if req.ManufacturerID != "" {
		id := uuid.MustParse(req.ManufacturerID)
		input.ManufacturerID = &id
	}
	for _, m := range req.Materials {
		material := domain.Material{
			Name:        m.Name,
			Percentage:  m.Percentage,
			Recyclable:  m.Recyclable,
			Description: m.Description,
		}
		if m.ID != "" {
			material.ID = uuid.MustParse(m.ID)
		}
		input.Materials = append(input.Materials, material)
	}
	return input
}

// ProductHandler handles HTTP requests for the product lifecycle
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes registers product routes on an authenticated router.
// nested adds further routes under /products.
func (h *ProductHandler) RegisterRoutes(r chi.Router, nested ...func(chi.Router)) {
	r.Get("/product-types", h.ProductTypes)

	r.Route("/products", func(r chi.Router) {
		r.With(middleware.RequireRole([]domain.Role{domain.RoleBrandOwner, domain.RoleManufacturer}, h.logger)).
			Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/status", h.UpdateStatus)
		r.Get("/{id}/validation", h.Validate)
		r.Get("/{id}/history", h.History)

		for _, register := range nested {
			register(r)
		}
	})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	product, err := h.products.Create(r.Context(), actor, req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	product, err := h.products.Update(r.Context(), actor, id, req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.products.Get(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// List returns the caller's products. Admins may pass company_id.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	companyID, err := queryUUID(r, "company_id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	var status *domain.ProductStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := domain.ParseProductStatus(raw)
		if err != nil {
			middleware.RespondWithDomainError(w, h.logger, err)
			return
		}
		status = &s
	}

	products, err := h.products.List(r.Context(), actor, companyID, status)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	to, err := domain.ParseProductStatus(req.Status)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	product, err := h.products.UpdateStatus(r.Context(), actor, id, to, req.Reason)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Validate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.products.ValidateStatus(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, report)
}

func (h *ProductHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	history, err := h.products.History(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, history)
}

func (h *ProductHandler) ProductTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.products.ProductTypes(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, types)
}
