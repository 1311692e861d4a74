package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jittakal/kafeventsink/internal/errors"
	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Uploader = (*FileUploader)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileUploader copies published files into another directory tree,
// typically a mounted network share.
type FileUploader struct {
	basePath string
	logger   *slog.Logger
}

// NewFileUploader creates a filesystem uploader rooted at config.BasePath.
func NewFileUploader(config FileConfig, logger *slog.Logger) (*FileUploader, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file archive base path is required")
	}

	// Ensure base path exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem uploader created", "base_path", config.BasePath)

	return &FileUploader{
		basePath: config.BasePath,
		logger:   logger,
	}, nil
}

// Upload copies localPath to basePath/key. The copy is written to a temporary
// name and renamed so readers never see a partial file.
func (u *FileUploader) Upload(ctx context.Context, localPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := filepath.Join(u.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &errors.StorageError{Operation: "upload", Path: dest, Err: err}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return &errors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return &errors.StorageError{Operation: "upload", Path: dest, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &errors.StorageError{Operation: "upload", Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &errors.StorageError{Operation: "upload", Path: dest, Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return &errors.StorageError{Operation: "upload", Path: dest, Err: err}
	}

	u.logger.Debug("copied file to archive", "source", localPath, "destination", dest)
	return nil
}

// Backend returns "file".
func (u *FileUploader) Backend() string { return BackendFile }

// Close is a no-op.
func (u *FileUploader) Close() error { return nil }
