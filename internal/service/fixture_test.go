package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"dpp-certification/internal/cache"
	"dpp-certification/internal/domain"
	"dpp-certification/internal/events"
	"dpp-certification/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const electronics = "electronics"

// memStore is an in-memory DocumentStore
type memStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	failNext error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) Store(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.files[key] = data
	return key, nil
}

func (s *memStore) PublicURL(_ context.Context, filePath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[filePath]; !ok {
		return "", storage.ErrFileNotFound
	}
	return "https://files.example.test/" + filePath, nil
}

func (s *memStore) Delete(_ context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, filePath)
	return nil
}

func (s *memStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// countingRecorder is a metrics.Recorder that keeps every call
type countingRecorder struct {
	mu          sync.Mutex
	transitions []string
	refused     []string
	uploads     []string
}

func (r *countingRecorder) RecordTransition(entity, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, entity+":"+from+"->"+to)
}

func (r *countingRecorder) RecordRefusedTransition(entity, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refused = append(r.refused, entity+":"+reason)
}

func (r *countingRecorder) RecordUpload(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, result)
}

type fixture struct {
	db        *memDB
	types     *mockProductTypeRepository
	prodRepo  *mockProductRepository
	docRepo   *mockDocumentRepository
	store     *memStore
	events    *events.Recorder
	metrics   *countingRecorder
	now       time.Time
	products  ProductService
	documents DocumentService
	assign    AssignmentService
	companies CompanyService

	brand        domain.Actor
	manufacturer domain.Actor
	distributor  domain.Actor
	admin        domain.Actor
	outsider     domain.Actor
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	db := newMemDB()
	f := &fixture{
		db: db,
		types: newMockProductTypeRepository(
			&domain.ProductType{
				Code: electronics,
				Name: "Electronics",
				RequiredDocuments: []domain.DocumentType{
					domain.DocSignatureCircular,
					domain.DocISOCertificate,
					domain.DocProductionPermit,
				},
			},
			&domain.ProductType{Code: "furniture", Name: "Furniture"},
		),
		docRepo: &mockDocumentRepository{db: db},
		store:   newMemStore(),
		events:  &events.Recorder{},
		metrics: &countingRecorder{},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	f.brand = f.seedActor(domain.CompanyBrandOwner, domain.RoleBrandOwner)
	f.manufacturer = f.seedActor(domain.CompanyManufacturer, domain.RoleManufacturer)
	f.distributor = f.seedActor(domain.CompanyDistributor, domain.RoleDistributor)
	f.admin = f.seedActor(domain.CompanyAdmin, domain.RoleAdmin)
	f.outsider = f.seedActor(domain.CompanyBrandOwner, domain.RoleBrandOwner)

	log := zap.NewNop()
	notifier := NewNotifier(f.events, f.metrics, log)
	catalog := NewRequirementCatalog(f.types, cache.NewMemoryCache(time.Minute, 16), log)
	products := &mockProductRepository{db: db}
	f.prodRepo = products
	companies := &mockCompanyRepository{db: db}
	clock := func() time.Time { return f.now }

	ps := NewProductService(products, f.docRepo, companies, catalog, notifier, log).(*productService)
	ps.now = clock
	f.products = ps

	ds := NewDocumentService(f.docRepo, products, f.store, storage.UploadOptions{
		MaxSize:           1 << 20,
		AllowedExtensions: []string{".pdf", ".png"},
	}, ps, notifier, log).(*documentService)
	ds.now = clock
	f.documents = ds

	as := NewAssignmentService(&mockAssignmentRepository{db: db}, products, companies, notifier, log).(*assignmentService)
	as.now = clock
	f.assign = as

	f.companies = NewCompanyService(companies, log)
	return f
}

func (f *fixture) seedActor(kind domain.CompanyKind, role domain.Role) domain.Actor {
	company := &domain.Company{ID: uuid.New(), Name: string(kind) + " co", Kind: kind, TaxNumber: uuid.NewString()}
	f.db.companies[company.ID] = company
	return domain.Actor{UserID: uuid.New(), CompanyID: company.ID, Role: role}
}

// seedProduct stores a product directly in the given status
func (f *fixture) seedProduct(owner domain.Actor, status domain.ProductStatus) *domain.Product {
	p := &domain.Product{
		ID:          uuid.New(),
		Name:        "Kettle",
		Model:       "K-100",
		ProductType: "furniture",
		CompanyID:   owner.CompanyID,
		Status:      status,
		Images:      []string{"images/kettle.png"},
		Materials:   []domain.Material{{ID: uuid.New(), Name: "Steel", Percentage: 80}},
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	p.Materials[0].ProductID = p.ID
	f.db.products[p.ID] = p
	return p
}

// seedDocument stores a document directly with a backing file
func (f *fixture) seedDocument(owner domain.Actor, productID *uuid.UUID, docType domain.DocumentType, status domain.DocumentStatus, version int) *domain.Document {
	d := &domain.Document{
		ID:        uuid.New(),
		CompanyID: owner.CompanyID,
		ProductID: productID,
		Type:      docType,
		FilePath:  "documents/seed/" + uuid.NewString() + ".pdf",
		Status:    status,
		Version:   version,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	if status == domain.DocumentRejected {
		reason := "unreadable scan"
		d.RejectionReason = &reason
	}
	f.db.documents[d.ID] = d
	f.store.files[d.FilePath] = []byte("%PDF")
	return d
}

func (f *fixture) status(id uuid.UUID) domain.ProductStatus {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.products[id].Status
}

func (f *fixture) historyLen(id uuid.UUID) int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.history[id])
}

func pdf(name string) storage.Upload {
	body := []byte("%PDF-1.7 test document")
	return storage.Upload{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	}
}

func readyInput() ProductInput {
	return ProductInput{
		Name:        "Smart Speaker",
		Model:       "SP-2",
		ProductType: electronics,
		Images:      []string{"images/speaker.png"},
		Materials: []domain.Material{
			{Name: "Aluminium", Percentage: 40, Recyclable: true},
			{Name: "ABS", Percentage: 35},
		},
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var errStoreDown = errors.New("object store unavailable")
