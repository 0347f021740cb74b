package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"
	"dpp-certification/internal/service"
	"dpp-certification/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Stub services embed the interface so an unexpected call panics and fails
// the test loudly.

type stubProductService struct {
	service.ProductService
	create       func(actor domain.Actor, input service.ProductInput) (*domain.Product, error)
	get          func(id uuid.UUID) (*domain.Product, error)
	list         func(companyID *uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error)
	updateStatus func(id uuid.UUID, to domain.ProductStatus, reason string) (*domain.Product, error)
	validate     func(id uuid.UUID) (domain.Eligibility, error)
}

func (s *stubProductService) Create(_ context.Context, actor domain.Actor, input service.ProductInput) (*domain.Product, error) {
	return s.create(actor, input)
}

func (s *stubProductService) Get(_ context.Context, _ domain.Actor, id uuid.UUID) (*domain.Product, error) {
	return s.get(id)
}

func (s *stubProductService) List(_ context.Context, _ domain.Actor, companyID *uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error) {
	return s.list(companyID, status)
}

func (s *stubProductService) UpdateStatus(_ context.Context, _ domain.Actor, id uuid.UUID, to domain.ProductStatus, reason string) (*domain.Product, error) {
	return s.updateStatus(id, to, reason)
}

func (s *stubProductService) ValidateStatus(_ context.Context, _ domain.Actor, id uuid.UUID) (domain.Eligibility, error) {
	return s.validate(id)
}

type stubDocumentService struct {
	service.DocumentService
	submit   func(input service.SubmitInput, body []byte) (*domain.Document, error)
	reupload func(id uuid.UUID, file storage.Upload) (*domain.Document, error)
	approve  func(id uuid.UUID) (*domain.Document, error)
	reject   func(id uuid.UUID, reason string) (*domain.Document, error)
	url      func(id uuid.UUID) (string, error)
}

func (s *stubDocumentService) Submit(_ context.Context, _ domain.Actor, input service.SubmitInput) (*domain.Document, error) {
	body := make([]byte, input.File.Size)
	if input.File.Body != nil {
		n, _ := input.File.Body.Read(body)
		body = body[:n]
	}
	return s.submit(input, body)
}

func (s *stubDocumentService) ReopenForReupload(_ context.Context, _ domain.Actor, id uuid.UUID, file storage.Upload) (*domain.Document, error) {
	return s.reupload(id, file)
}

func (s *stubDocumentService) Approve(_ context.Context, _ domain.Actor, id uuid.UUID) (*domain.Document, error) {
	return s.approve(id)
}

func (s *stubDocumentService) Reject(_ context.Context, _ domain.Actor, id uuid.UUID, reason string) (*domain.Document, error) {
	return s.reject(id, reason)
}

func (s *stubDocumentService) URL(_ context.Context, _ domain.Actor, id uuid.UUID) (string, error) {
	return s.url(id)
}

type stubAssignmentService struct {
	service.AssignmentService
	remove         func(materialID uuid.UUID) error
	listForProduct func(productID uuid.UUID) ([]*domain.DistributorAssignment, error)
	listForMaker   func(manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error)
	assign         func(productID, distributorID uuid.UUID, opts domain.DistributorOptions) (*domain.DistributorAssignment, error)
	activate       func(id uuid.UUID) (*domain.DistributorAssignment, error)
}

func (s *stubAssignmentService) RemoveAssignment(_ context.Context, _ domain.Actor, materialID uuid.UUID) error {
	return s.remove(materialID)
}

func (s *stubAssignmentService) ListForProduct(_ context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error) {
	return s.listForProduct(productID)
}

func (s *stubAssignmentService) ListForManufacturer(_ context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error) {
	return s.listForMaker(manufacturerID)
}

func (s *stubAssignmentService) AssignDistributor(_ context.Context, _ domain.Actor, productID, distributorID uuid.UUID, opts domain.DistributorOptions) (*domain.DistributorAssignment, error) {
	return s.assign(productID, distributorID, opts)
}

func (s *stubAssignmentService) ActivateDistributor(_ context.Context, _ domain.Actor, id uuid.UUID) (*domain.DistributorAssignment, error) {
	return s.activate(id)
}

func actorOf(role domain.Role) domain.Actor {
	return domain.Actor{UserID: uuid.New(), CompanyID: uuid.New(), Role: role}
}

// newRouter mounts routes behind a fake authentication step. A zero actor
// leaves the request anonymous.
func newRouter(actor domain.Actor, register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor.UserID != uuid.Nil {
				req = req.WithContext(middleware.WithActor(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorEnvelope(t testing.TB, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
