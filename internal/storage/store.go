package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"dpp-certification/internal/domain"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("stored file not found")

// DocumentStore persists document binaries. The lifecycle engine never
// interprets the bytes; it only keeps the returned file path.
type DocumentStore interface {
	// Store durably saves the body and returns its file path. A nil error
	// means the file can be served.
	Store(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	PublicURL(ctx context.Context, filePath string) (string, error)
	Delete(ctx context.Context, filePath string) error
}

// UploadOptions constrains what may be handed to a DocumentStore
type UploadOptions struct {
	MaxSize           int64
	AllowedExtensions []string
}

// Upload is a file received from a caller
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate applies the size and extension rules before any bytes are stored
func (o UploadOptions) Validate(u Upload) error {
	if u.Body == nil || u.Size <= 0 {
		return domain.NewFieldError("file", "file is required")
	}
	if o.MaxSize > 0 && u.Size > o.MaxSize {
		return domain.NewFieldError("file", fmt.Sprintf("file size %d bytes exceeds maximum allowed size %d bytes", u.Size, o.MaxSize))
	}
	if len(o.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		allowed := false
		for _, a := range o.AllowedExtensions {
			if ext == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return domain.NewFieldError("file", fmt.Sprintf("file type %q is not allowed", ext))
		}
	}
	return nil
}

// ObjectKey builds a collision-free key grouped by company and document type
func ObjectKey(companyID uuid.UUID, docType domain.DocumentType, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := fmt.Sprintf("%s_%s%s", time.Now().UTC().Format("20060102T150405"), uuid.NewString(), ext)
	return path.Join("documents", companyID.String(), string(docType), name)
}
