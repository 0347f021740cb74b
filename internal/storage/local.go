package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps documents on the local filesystem. Used in development
// and whenever no object store is configured.
type LocalStore struct {
	basePath      string
	publicBaseURL string
}

func NewLocalStore(basePath, publicBaseURL string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./data/documents"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Root is the directory served under the public base URL
func (s *LocalStore) Root() string {
	return s.basePath
}

// normalize anchors the key at the store root so ".." can never escape it
func normalize(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean, err := normalize(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Store(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	// Write to a temp file and rename so a partial upload is never visible.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("commit file: %w", err)
	}

	return normalize(key)
}

func (s *LocalStore) PublicURL(_ context.Context, filePath string) (string, error) {
	target, err := s.resolve(filePath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("stat file: %w", err)
	}
	return s.publicBaseURL + "/" + strings.TrimLeft(filePath, "/"), nil
}

func (s *LocalStore) Delete(_ context.Context, filePath string) error {
	target, err := s.resolve(filePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
