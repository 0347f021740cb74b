package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/logger"
	"dpp-certification/internal/repository"
	"dpp-certification/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitInput describes a new supporting document
type SubmitInput struct {
	Type       domain.DocumentType
	ProductID  *uuid.UUID
	ValidUntil *time.Time
	File       storage.Upload
}

// DocumentService is the Document Lifecycle Manager
type DocumentService interface {
	Submit(ctx context.Context, actor domain.Actor, input SubmitInput) (*domain.Document, error)
	Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Document, error)
	Reject(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Document, error)
	ReopenForReupload(ctx context.Context, actor domain.Actor, id uuid.UUID, file storage.Upload) (*domain.Document, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, actor domain.Actor, productID *uuid.UUID) ([]*domain.Document, error)
	AuditLog(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.DocumentAuditEntry, error)
	URL(ctx context.Context, actor domain.Actor, id uuid.UUID) (string, error)
}

// reevaluator re-runs the DRAFT -> NEW check after a document change
type reevaluator interface {
	Reevaluate(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Product, error)
}

const (
	uploadAccepted = "accepted"
	uploadRejected = "rejected"
	uploadFailed   = "failed"
)

type documentService struct {
	documents repository.DocumentRepository
	products  repository.ProductRepository
	store     storage.DocumentStore
	upload    storage.UploadOptions
	lifecycle reevaluator
	notifier  *Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentService creates a new instance of DocumentService
func NewDocumentService(
	documents repository.DocumentRepository,
	products repository.ProductRepository,
	store storage.DocumentStore,
	upload storage.UploadOptions,
	lifecycle reevaluator,
	notifier *Notifier,
	log *zap.Logger,
) DocumentService {
	return &documentService{
		documents: documents,
		products:  products,
		store:     store,
		upload:    upload,
		lifecycle: lifecycle,
		notifier:  notifier,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores the file first and writes the document row only once the
// store has confirmed it. A failed row write removes the stored file.
func (s *documentService) Submit(ctx context.Context, actor domain.Actor, input SubmitInput) (*domain.Document, error) {
	const op = "document.submit"

	if !input.Type.Valid() {
		s.notifier.Upload(uploadRejected)
		return nil, domain.NewFieldError("type", "unknown document type "+string(input.Type))
	}
	if err := s.upload.Validate(input.File); err != nil {
		s.notifier.Upload(uploadRejected)
		return nil, err
	}
	if input.ProductID != nil {
		product, err := s.products.FindByID(ctx, *input.ProductID)
		if err != nil {
			return nil, translate(op, err)
		}
		if !product.OwnedBy(actor.CompanyID) {
			return nil, forbidden(op, "only the product owner may attach documents")
		}
	}

	key := storage.ObjectKey(actor.CompanyID, input.Type, input.File.Filename)
	filePath, err := s.store.Store(ctx, key, input.File.Body, input.File.Size, input.File.ContentType)
	if err != nil {
		s.notifier.Upload(uploadFailed)
		s.logger.Error("Failed to store document file", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	now := s.now()
	doc := &domain.Document{
		ID:         uuid.New(),
		CompanyID:  actor.CompanyID,
		ProductID:  input.ProductID,
		Type:       input.Type,
		FilePath:   filePath,
		Status:     domain.DocumentPending,
		Version:    1,
		ValidUntil: input.ValidUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	entry := &domain.DocumentAuditEntry{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		To:         domain.DocumentPending,
		ActorID:    actor.UserID,
		Version:    1,
		CreatedAt:  now,
	}

	if err := s.documents.Create(ctx, doc, entry); err != nil {
		s.notifier.Upload(uploadFailed)
		s.discard(filePath)
		return nil, translate(op, err)
	}
	s.notifier.Upload(uploadAccepted)

	s.logger.Info("Document submitted",
		zap.String("document_id", doc.ID.String()),
		zap.String("type", string(doc.Type)),
		zap.String("actor_id", actor.UserID.String()),
	)
	s.committed(ctx, entry)
	s.reevaluate(ctx, doc, actor.UserID)
	return doc, nil
}

func (s *documentService) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Document, error) {
	return s.decide(ctx, "document.approve", actor, id, domain.DocumentApproved, "")
}

func (s *documentService) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := domain.NewFieldError("reason", "a reason is required to reject a document")
		s.notifier.Refused("document", err)
		return nil, err
	}
	doc, err := s.decide(ctx, "document.reject", actor, id, domain.DocumentRejected, reason)
	if err != nil {
		return nil, err
	}
	s.reevaluate(ctx, doc, actor.UserID)
	return doc, nil
}

// decide runs an admin review decision. Repeating a decision that is
// already recorded is a no-op.
func (s *documentService) decide(ctx context.Context, op string, actor domain.Actor, id uuid.UUID, to domain.DocumentStatus, reason string) (*domain.Document, error) {
	if !actor.IsAdmin() {
		err := forbidden(op, "only an admin may review documents")
		s.notifier.Refused("document", err)
		return nil, err
	}

	var written *domain.DocumentAuditEntry
	doc, err := s.documents.Mutate(ctx, id, func(d *domain.Document) (*domain.DocumentAuditEntry, error) {
		current := d.EffectiveStatus(s.now())
		if _, ok := domain.DocumentTransition(current, to); !ok {
			return nil, &domain.TransitionError{Entity: "document", From: string(current), To: string(to)}
		}

		d.Status = to
		d.RejectionReason = nil
		if reason != "" {
			d.RejectionReason = &reason
		}
		d.UpdatedAt = s.now()
		written = s.auditEntry(d, current, actor.UserID, reason)
		return written, nil
	})
	if err != nil {
		err = translate(op, err)
		s.notifier.Refused("document", err)
		s.logger.Debug("Document transition refused",
			zap.String("document_id", id.String()),
			zap.String("to", string(to)),
			zap.String("actor_id", actor.UserID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if written != nil {
		s.committed(ctx, written)
	}
	doc.Status = doc.EffectiveStatus(s.now())
	return doc, nil
}

// ReopenForReupload replaces the file of a rejected document and puts it
// back into review under the next version.
func (s *documentService) ReopenForReupload(ctx context.Context, actor domain.Actor, id uuid.UUID, file storage.Upload) (*domain.Document, error) {
	const op = "document.reupload"

	existing, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, translate(op, err)
	}
	if err := reopenAllowed(op, existing, actor); err != nil {
		s.notifier.Refused("document", err)
		return nil, err
	}
	if err := s.upload.Validate(file); err != nil {
		s.notifier.Upload(uploadRejected)
		return nil, err
	}

	key := storage.ObjectKey(existing.CompanyID, existing.Type, file.Filename)
	filePath, err := s.store.Store(ctx, key, file.Body, file.Size, file.ContentType)
	if err != nil {
		s.notifier.Upload(uploadFailed)
		s.logger.Error("Failed to store reuploaded file", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	var (
		written *domain.DocumentAuditEntry
		oldPath string
	)
	doc, err := s.documents.Mutate(ctx, id, func(d *domain.Document) (*domain.DocumentAuditEntry, error) {
		if err := reopenAllowed(op, d, actor); err != nil {
			return nil, err
		}
		oldPath = d.FilePath
		d.Status = domain.DocumentPending
		d.RejectionReason = nil
		d.Version++
		d.FilePath = filePath
		d.UpdatedAt = s.now()
		written = s.auditEntry(d, domain.DocumentRejected, actor.UserID, replacedFileReason(oldPath))
		return written, nil
	})
	if err != nil {
		s.notifier.Upload(uploadFailed)
		s.discard(filePath)
		err = translate(op, err)
		s.notifier.Refused("document", err)
		return nil, err
	}
	s.notifier.Upload(uploadAccepted)

	s.logger.Info("Document reopened for review",
		zap.String("document_id", doc.ID.String()),
		zap.Int("version", doc.Version),
		zap.String("previous_file", oldPath),
	)
	s.committed(ctx, written)
	s.reevaluate(ctx, doc, actor.UserID)
	return doc, nil
}

// replacedFileReason records which file a reupload superseded. The old file
// stays in the store so earlier audit entries keep pointing at real bytes.
func replacedFileReason(oldPath string) string {
	return "replaces " + oldPath
}

func reopenAllowed(op string, d *domain.Document, actor domain.Actor) error {
	if !d.OwnedBy(actor.CompanyID) {
		return forbidden(op, "only the owning company may reupload a document")
	}
	if d.Status != domain.DocumentRejected {
		return &domain.TransitionError{Entity: "document", From: string(d.Status), To: string(domain.DocumentPending)}
	}
	return nil
}

func (s *documentService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Document, error) {
	return s.authorized(ctx, "document.get", actor, id)
}

// List returns the documents of one product, or of the caller's company
// when no product is given
func (s *documentService) List(ctx context.Context, actor domain.Actor, productID *uuid.UUID) ([]*domain.Document, error) {
	const op = "document.list"

	var (
		docs []*domain.Document
		err  error
	)
	if productID != nil {
		product, findErr := s.products.FindByID(ctx, *productID)
		if findErr != nil {
			return nil, translate(op, findErr)
		}
		if !actor.IsAdmin() && !product.OwnedBy(actor.CompanyID) {
			return nil, forbidden(op, "actor has no authority over this product")
		}
		docs, err = s.documents.ListByProduct(ctx, *productID)
	} else {
		docs, err = s.documents.ListByCompany(ctx, actor.CompanyID)
	}
	if err != nil {
		return nil, translate(op, err)
	}

	now := s.now()
	for _, d := range docs {
		d.Status = d.EffectiveStatus(now)
	}
	return docs, nil
}

func (s *documentService) AuditLog(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.DocumentAuditEntry, error) {
	if _, err := s.authorized(ctx, "document.audit", actor, id); err != nil {
		return nil, err
	}
	entries, err := s.documents.AuditLog(ctx, id)
	if err != nil {
		return nil, translate("document.audit", err)
	}
	return entries, nil
}

// URL resolves a link the caller can download the file from
func (s *documentService) URL(ctx context.Context, actor domain.Actor, id uuid.UUID) (string, error) {
	doc, err := s.authorized(ctx, "document.url", actor, id)
	if err != nil {
		return "", err
	}
	url, err := s.store.PublicURL(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return "", domain.WrapError(domain.ErrNotFound, "document.url", err)
		}
		return "", err
	}
	return url, nil
}

func (s *documentService) authorized(ctx context.Context, op string, actor domain.Actor, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, translate(op, err)
	}
	if !actor.IsAdmin() && !doc.OwnedBy(actor.CompanyID) {
		return nil, forbidden(op, "actor has no authority over this document")
	}
	doc.Status = doc.EffectiveStatus(s.now())
	return doc, nil
}

func (s *documentService) auditEntry(d *domain.Document, from domain.DocumentStatus, actorID uuid.UUID, reason string) *domain.DocumentAuditEntry {
	entry := &domain.DocumentAuditEntry{
		ID:         uuid.New(),
		DocumentID: d.ID,
		From:       &from,
		To:         d.Status,
		ActorID:    actorID,
		Version:    d.Version,
		CreatedAt:  d.UpdatedAt,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	return entry
}

func (s *documentService) committed(ctx context.Context, entry *domain.DocumentAuditEntry) {
	from := ""
	if entry.From != nil {
		from = string(*entry.From)
	}
	reason := ""
	if entry.Reason != nil {
		reason = *entry.Reason
	}

	if entry.From != nil {
		s.logger.Info("Document status changed",
			logger.Transition("document", entry.DocumentID.String(), from, string(entry.To), entry.ActorID.String())...,
		)
	}
	s.notifier.Committed(ctx, "document", domain.Event{
		Type:       domain.EventDocumentStatus,
		EntityID:   entry.DocumentID,
		From:       from,
		To:         string(entry.To),
		ActorID:    entry.ActorID,
		Reason:     reason,
		OccurredAt: entry.CreatedAt,
	})
}

// reevaluate gives the owning product a chance to auto-advance. The document
// change is already committed, so a failure here is only logged.
func (s *documentService) reevaluate(ctx context.Context, doc *domain.Document, actorID uuid.UUID) {
	if doc.ProductID == nil || s.lifecycle == nil {
		return
	}
	if _, err := s.lifecycle.Reevaluate(ctx, *doc.ProductID, actorID); err != nil {
		s.logger.Warn("Failed to re-evaluate product eligibility",
			zap.String("product_id", doc.ProductID.String()),
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}
}

// discard removes a file whose document row was never written
func (s *documentService) discard(filePath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, filePath); err != nil {
		s.logger.Error("Failed to remove orphaned document file", zap.String("file_path", filePath), zap.Error(err))
	}
}
