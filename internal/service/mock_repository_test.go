package service

import (
	"context"
	"sort"
	"sync"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/repository"

	"github.com/google/uuid"
)

// memDB is a map-backed stand-in for Postgres. Every read hands out copies
// and every callback runs on a copy that is only stored when it succeeds,
// matching the row-locking transactions of the real repositories.
type memDB struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*domain.Product
	history      map[uuid.UUID][]domain.StatusHistoryEntry
	documents    map[uuid.UUID]*domain.Document
	audit        map[uuid.UUID][]domain.DocumentAuditEntry
	companies    map[uuid.UUID]*domain.Company
	manufacturer map[uuid.UUID]*domain.MaterialManufacturerAssignment
	distributors map[uuid.UUID]*domain.DistributorAssignment
}

func newMemDB() *memDB {
	return &memDB{
		products:     make(map[uuid.UUID]*domain.Product),
		history:      make(map[uuid.UUID][]domain.StatusHistoryEntry),
		documents:    make(map[uuid.UUID]*domain.Document),
		audit:        make(map[uuid.UUID][]domain.DocumentAuditEntry),
		companies:    make(map[uuid.UUID]*domain.Company),
		manufacturer: make(map[uuid.UUID]*domain.MaterialManufacturerAssignment),
		distributors: make(map[uuid.UUID]*domain.DistributorAssignment),
	}
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	c.Materials = append([]domain.Material(nil), p.Materials...)
	c.Documents = nil
	c.StatusHistory = nil
	return &c
}

func cloneDocument(d *domain.Document) *domain.Document {
	c := *d
	return &c
}

// loadProduct must be called with mu held
func (m *memDB) loadProduct(id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	c := cloneProduct(p)
	var docs []*domain.Document
	for _, d := range m.documents {
		if d.ProductID != nil && *d.ProductID == id {
			docs = append(docs, cloneDocument(d))
		}
	}
	c.AttachDocuments(docs)
	return c, nil
}

func assignMaterialIDs(p *domain.Product) {
	for i := range p.Materials {
		if p.Materials[i].ID == uuid.Nil {
			p.Materials[i].ID = uuid.New()
		}
		p.Materials[i].ProductID = p.ID
		p.Materials[i].Position = i
	}
}

type mockProductRepository struct {
	db *memDB
	// failTransition makes every Transition fail before the callback runs
	failTransition error
}

func (r *mockProductRepository) Create(ctx context.Context, product *domain.Product, entry *domain.StatusHistoryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	assignMaterialIDs(product)
	r.db.products[product.ID] = cloneProduct(product)
	if entry != nil {
		r.db.history[product.ID] = append(r.db.history[product.ID], *entry)
	}
	return nil
}

func (r *mockProductRepository) Edit(ctx context.Context, id uuid.UUID, fn repository.EditFunc) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, err := r.db.loadProduct(id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	assignMaterialIDs(p)
	r.db.products[id] = cloneProduct(p)
	return p, nil
}

func (r *mockProductRepository) Transition(ctx context.Context, id uuid.UUID, fn repository.TransitionFunc) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.failTransition != nil {
		return nil, r.failTransition
	}
	p, err := r.db.loadProduct(id)
	if err != nil {
		return nil, err
	}
	entry, err := fn(p)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return p, nil
	}
	stored := r.db.products[id]
	stored.Status = entry.To
	stored.UpdatedAt = entry.Timestamp
	r.db.history[id] = append(r.db.history[id], *entry)
	p.Status = entry.To
	p.UpdatedAt = entry.Timestamp
	return p, nil
}

func (r *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.loadProduct(id)
}

func (r *mockProductRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, status *domain.ProductStatus) ([]*domain.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range r.db.products {
		if !p.OwnedBy(companyID) {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *mockProductRepository) History(ctx context.Context, id uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]domain.StatusHistoryEntry{}, r.db.history[id]...), nil
}

func (r *mockProductRepository) FindMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.products {
		for _, m := range p.Materials {
			if m.ID == materialID {
				c := m
				return &c, nil
			}
		}
	}
	return nil, repository.ErrMaterialNotFound
}

type mockDocumentRepository struct {
	db *memDB
	// failCreate makes the next Create fail after the file was stored
	failCreate error
}

func (r *mockDocumentRepository) Create(ctx context.Context, doc *domain.Document, entry *domain.DocumentAuditEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.db.documents[doc.ID] = cloneDocument(doc)
	r.db.audit[doc.ID] = append(r.db.audit[doc.ID], *entry)
	return nil
}

func (r *mockDocumentRepository) Mutate(ctx context.Context, id uuid.UUID, fn repository.MutateFunc) (*domain.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.documents[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	working := cloneDocument(d)
	entry, err := fn(working)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return working, nil
	}
	r.db.documents[id] = cloneDocument(working)
	r.db.audit[id] = append(r.db.audit[id], *entry)
	return working, nil
}

func (r *mockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.documents[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	return cloneDocument(d), nil
}

func (r *mockDocumentRepository) list(match func(*domain.Document) bool) []*domain.Document {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.Document{}
	for _, d := range r.db.documents {
		if match(d) {
			out = append(out, cloneDocument(d))
		}
	}
	return out
}

func (r *mockDocumentRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Document, error) {
	return r.list(func(d *domain.Document) bool { return d.ProductID != nil && *d.ProductID == productID }), nil
}

func (r *mockDocumentRepository) ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]*domain.Document, error) {
	want := make(map[uuid.UUID]bool, len(productIDs))
	for _, id := range productIDs {
		want[id] = true
	}
	return r.list(func(d *domain.Document) bool { return d.ProductID != nil && want[*d.ProductID] }), nil
}

func (r *mockDocumentRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*domain.Document, error) {
	return r.list(func(d *domain.Document) bool { return d.CompanyID == companyID }), nil
}

func (r *mockDocumentRepository) AuditLog(ctx context.Context, id uuid.UUID) ([]domain.DocumentAuditEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]domain.DocumentAuditEntry{}, r.db.audit[id]...), nil
}

type mockCompanyRepository struct{ db *memDB }

func (r *mockCompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.companies {
		if c.TaxNumber != "" && c.TaxNumber == company.TaxNumber {
			return repository.ErrCompanyAlreadyExists
		}
	}
	c := *company
	r.db.companies[company.ID] = &c
	return nil
}

func (r *mockCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.companies[id]
	if !ok {
		return nil, repository.ErrCompanyNotFound
	}
	out := *c
	return &out, nil
}

func (r *mockCompanyRepository) List(ctx context.Context, kind *domain.CompanyKind) ([]*domain.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.Company{}
	for _, c := range r.db.companies {
		if kind == nil || c.Kind == *kind {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

// mockProductTypeRepository keeps its own lock: the catalogue is read from
// inside transition callbacks while memDB is locked.
type mockProductTypeRepository struct {
	mu    sync.Mutex
	types map[string]*domain.ProductType
	reads int
}

func newMockProductTypeRepository(types ...*domain.ProductType) *mockProductTypeRepository {
	r := &mockProductTypeRepository{types: make(map[string]*domain.ProductType)}
	for _, pt := range types {
		r.types[pt.Code] = pt
	}
	return r
}

func (r *mockProductTypeRepository) FindByCode(ctx context.Context, code string) (*domain.ProductType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	pt, ok := r.types[code]
	if !ok {
		return nil, repository.ErrProductTypeNotFound
	}
	c := *pt
	c.RequiredDocuments = append([]domain.DocumentType(nil), pt.RequiredDocuments...)
	return &c, nil
}

func (r *mockProductTypeRepository) List(ctx context.Context) ([]*domain.ProductType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.ProductType{}
	for _, pt := range r.types {
		c := *pt
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *mockProductTypeRepository) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

type mockAssignmentRepository struct{ db *memDB }

func (r *mockAssignmentRepository) UpsertManufacturer(ctx context.Context, a *domain.MaterialManufacturerAssignment) (*domain.MaterialManufacturerAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row := *a
	if existing, ok := r.db.manufacturer[a.MaterialID]; ok {
		row.CreatedAt = existing.CreatedAt
	}
	r.db.manufacturer[a.MaterialID] = &row
	out := row
	return &out, nil
}

func (r *mockAssignmentRepository) DeleteManufacturer(ctx context.Context, materialID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.manufacturer, materialID)
	return nil
}

func (r *mockAssignmentRepository) FindManufacturer(ctx context.Context, materialID uuid.UUID) (*domain.MaterialManufacturerAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.manufacturer[materialID]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *mockAssignmentRepository) ListForManufacturer(ctx context.Context, manufacturerID uuid.UUID) ([]*domain.MaterialManufacturerAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.MaterialManufacturerAssignment{}
	for _, a := range r.db.manufacturer {
		if a.ManufacturerID == manufacturerID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *mockAssignmentRepository) CreateDistributor(ctx context.Context, a *domain.DistributorAssignment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.distributors {
		if existing.ProductID == a.ProductID && existing.DistributorID == a.DistributorID && existing.Status.Open() {
			return repository.ErrDuplicateAssignment
		}
	}
	c := *a
	r.db.distributors[a.ID] = &c
	return nil
}

func (r *mockAssignmentRepository) UpdateDistributor(ctx context.Context, id uuid.UUID, fn repository.DistributorUpdateFunc) (*domain.DistributorAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.distributors[id]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	working := *a
	write, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if write {
		stored := working
		r.db.distributors[id] = &stored
	}
	return &working, nil
}

func (r *mockAssignmentRepository) FindDistributor(ctx context.Context, id uuid.UUID) (*domain.DistributorAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.distributors[id]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *mockAssignmentRepository) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.DistributorAssignment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.DistributorAssignment{}
	for _, a := range r.db.distributors {
		if a.ProductID == productID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	return out, nil
}
