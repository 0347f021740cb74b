package transport

import (
	"context"
	"errors"
	"net/http"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"
	"dpp-certification/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssignManufacturerRequest names the manufacturer responsible for a material
type AssignManufacturerRequest struct {
	ManufacturerID string `json:"manufacturer_id" validate:"required,uuid"`
}

// AssignDistributorRequest represents a new distributor assignment
type AssignDistributorRequest struct {
	DistributorID  string   `json:"distributor_id" validate:"required,uuid"`
	Territory      *string  `json:"territory" validate:"omitempty,max=255"`
	CommissionRate *float64 `json:"commission_rate" validate:"omitempty,gte=0,lte=100"`
	Notes          *string  `json:"notes"`
}

// AssignmentHandler handles manufacturer and distributor assignments
type AssignmentHandler struct {
	assignments service.AssignmentService
	logger      *zap.Logger
}

func NewAssignmentHandler(assignments service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, logger: logger}
}

// RegisterRoutes registers the assignment routes that live outside /products
func (h *AssignmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/materials/{materialId}/manufacturer", func(r chi.Router) {
		r.Put("/", h.AssignManufacturer)
		r.Delete("/", h.RemoveAssignment)
	})
	r.Get("/manufacturers/{id}/assignments", h.ListForManufacturer)

	r.Route("/distributor-assignments/{id}", func(r chi.Router) {
		r.Post("/activate", h.Activate)
		r.Post("/deactivate", h.Deactivate)
	})
}

// ProductRoutes registers the distributor routes nested under /products
func (h *AssignmentHandler) ProductRoutes(r chi.Router) {
	r.Post("/{id}/distributors", h.AssignDistributor)
	r.Get("/{id}/distributors", h.ListForProduct)
}

func (h *AssignmentHandler) AssignManufacturer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	materialID, ok := pathUUID(w, r, "materialId")
	if !ok {
		return
	}
	var req AssignManufacturerRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	assignment, err := h.assignments.AssignManufacturer(r.Context(), actor, materialID, uuid.MustParse(req.ManufacturerID))
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, assignment)
}

func (h *AssignmentHandler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	materialID, ok := pathUUID(w, r, "materialId")
	if !ok {
		return
	}

	if err := h.assignments.RemoveAssignment(r.Context(), actor, materialID); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListForManufacturer is open to the manufacturer itself and to admins
func (h *AssignmentHandler) ListForManufacturer(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if !actor.IsAdmin() && actor.CompanyID != id {
		middleware.RespondWithDomainError(w, h.logger, domain.WrapError(domain.ErrForbidden, "assignment.list", errors.New("not your manufacturer assignments")))
		return
	}

	assignments, err := h.assignments.ListForManufacturer(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, assignments)
}

func (h *AssignmentHandler) AssignDistributor(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	productID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req AssignDistributorRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	opts := domain.DistributorOptions{
		Territory:      req.Territory,
		CommissionRate: req.CommissionRate,
		Notes:          req.Notes,
	}
	assignment, err := h.assignments.AssignDistributor(r.Context(), actor, productID, uuid.MustParse(req.DistributorID), opts)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, assignment)
}

func (h *AssignmentHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	productID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	assignments, err := h.assignments.ListForProduct(r.Context(), productID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, assignments)
}

func (h *AssignmentHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.moveDistributor(w, r, h.assignments.ActivateDistributor)
}

func (h *AssignmentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.moveDistributor(w, r, h.assignments.DeactivateDistributor)
}

type distributorMove func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error)

func (h *AssignmentHandler) moveDistributor(w http.ResponseWriter, r *http.Request, move distributorMove) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	assignment, err := move(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, assignment)
}
