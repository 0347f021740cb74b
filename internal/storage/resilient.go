package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"dpp-certification/internal/domain"
	"dpp-certification/internal/resilience"
)

// ResilientStore retries transient store failures and trips a breaker when
// the backend keeps failing. Callers see domain.ErrTemporary once it gives up.
type ResilientStore struct {
	next DocumentStore
	exec *resilience.Executor
}

func NewResilientStore(next DocumentStore, exec *resilience.Executor) *ResilientStore {
	return &ResilientStore{next: next, exec: exec}
}

func (s *ResilientStore) Store(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	// Buffer once so every attempt starts from the first byte.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	var filePath string
	err = s.exec.Execute(ctx, "storage.store", func(ctx context.Context) error {
		p, err := s.next.Store(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			return err
		}
		filePath = p
		return nil
	}, resilience.TransientClassifier)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "storage.store", err)
	}
	return filePath, nil
}

func (s *ResilientStore) PublicURL(ctx context.Context, filePath string) (string, error) {
	var url string
	err := s.exec.Execute(ctx, "storage.url", func(ctx context.Context) error {
		u, err := s.next.PublicURL(ctx, filePath)
		if err != nil {
			return err
		}
		url = u
		return nil
	}, classifyLookup)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return "", domain.WrapError(domain.ErrNotFound, "storage.url", err)
		}
		return "", domain.WrapError(domain.ErrTemporary, "storage.url", err)
	}
	return url, nil
}

func (s *ResilientStore) Delete(ctx context.Context, filePath string) error {
	err := s.exec.Execute(ctx, "storage.delete", func(ctx context.Context) error {
		return s.next.Delete(ctx, filePath)
	}, resilience.TransientClassifier)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "storage.delete", err)
	}
	return nil
}

// A missing file is an answer, not a backend failure.
func classifyLookup(err error) resilience.ErrorClassification {
	if errors.Is(err, ErrFileNotFound) {
		return resilience.ErrorClassification{}
	}
	return resilience.TransientClassifier(err)
}
