package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ContentStore is where photo bytes live. Rows only reference content already written here.
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalContentStore keeps objects under a directory (UPLOAD_PATH).
type LocalContentStore struct {
	root    string
	baseURL string
}

func NewLocalContentStore(root, baseURL string) (*LocalContentStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalContentStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalContentStore) path(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + key))
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid content key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *LocalContentStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize content: %w", err)
	}
	return s.baseURL + "/" + strings.TrimPrefix(filepath.ToSlash(key), "/"), nil
}

func (s *LocalContentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

func (s *LocalContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}
