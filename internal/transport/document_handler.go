package transport

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/middleware"
	"dpp-certification/internal/service"
	"dpp-certification/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file size for form fields
const multipartOverhead = 1 << 20

// RejectRequest represents a document rejection
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// URLResponse carries a download link for a document file
type URLResponse struct {
	URL string `json:"url"`
}

// DocumentHandler handles HTTP requests for the document lifecycle
type DocumentHandler struct {
	documents service.DocumentService
	maxUpload int64
	logger    *zap.Logger
}

func NewDocumentHandler(documents service.DocumentService, maxUpload int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUpload: maxUpload, logger: logger}
}

// RegisterRoutes registers document routes on an authenticated router.
// throttle guards the two upload endpoints.
func (h *DocumentHandler) RegisterRoutes(r chi.Router, throttle func(http.Handler) http.Handler) {
	r.Route("/documents", func(r chi.Router) {
		r.With(throttle).Post("/", h.Submit)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(middleware.RequireAdmin(h.logger)).Post("/{id}/approve", h.Approve)
		r.With(middleware.RequireAdmin(h.logger)).Post("/{id}/reject", h.Reject)
		r.With(throttle).Post("/{id}/reupload", h.Reupload)
		r.Get("/{id}/audit", h.AuditLog)
		r.Get("/{id}/url", h.URL)
	})
}

// readFile pulls the "file" part of a multipart request. The caller must
// close the returned file.
func (h *DocumentHandler) readFile(w http.ResponseWriter, r *http.Request) (storage.Upload, multipart.File, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return storage.Upload{}, nil, domain.NewFieldError("file", "file exceeds the maximum allowed size")
		}
		return storage.Upload{}, nil, domain.NewFieldError("file", "expected a multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return storage.Upload{}, nil, domain.NewFieldError("file", "file is required")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return storage.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

func parseValidUntil(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.NewFieldError("valid_until", "expected RFC3339 timestamp or YYYY-MM-DD date")
}

func (h *DocumentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	upload, file, err := h.readFile(w, r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer file.Close()

	input := service.SubmitInput{
		Type: domain.DocumentType(r.FormValue("type")),
		File: upload,
	}
	if input.ProductID, err = queryOrForm(r, "product_id"); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	if input.ValidUntil, err = parseValidUntil(r.FormValue("valid_until")); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	doc, err := h.documents.Submit(r.Context(), actor, input)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) Reupload(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	upload, file, err := h.readFile(w, r)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	defer file.Close()

	doc, err := h.documents.ReopenForReupload(r.Context(), actor, id, upload)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Approve(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	doc, err := h.documents.Reject(r.Context(), actor, id, req.Reason)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	productID, err := queryUUID(r, "product_id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	docs, err := h.documents.List(r.Context(), actor, productID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.documents.AuditLog(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *DocumentHandler) URL(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	url, err := h.documents.URL(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, URLResponse{URL: url})
}
