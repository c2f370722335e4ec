// Package filestore retains uploaded documents after a successful ingestion.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
)

// Store keeps a permanent copy of a file under key.
type Store interface {
	// Save copies the file at path to key and returns a URL for it.
	Save(ctx context.Context, key, path string) (string, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Local stores files below a directory.
type Local struct {
	dir    string
	logger *zap.Logger
}

// NewLocal creates dir if needed.
func NewLocal(dir string, l *zap.Logger) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("files directory is not configured")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve files directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create files directory %q: %w", abs, err)
	}
	return &Local{dir: abs, logger: logger.WithComponent(l, "filestore")}, nil
}

func (s *Local) target(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *Local) Save(ctx context.Context, key, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst, err := s.target(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create directory for %q: %w", key, err)
	}

	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy %q: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %q: %w", dst, err)
	}

	s.logger.Debug("file retained", zap.String("key", key), zap.String("path", dst))

	return "file://" + filepath.ToSlash(dst), nil
}

func (s *Local) Delete(_ context.Context, key string) error {
	dst, err := s.target(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", dst, err)
	}
	return nil
}
