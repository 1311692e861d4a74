package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/jittakal/kafeventsink/internal/errors"
)

func TestNewFileUploader(t *testing.T) {
	base := filepath.Join(t.TempDir(), "archive", "nested")
	u, err := NewFileUploader(FileConfig{BasePath: base}, testLogger())
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}
	defer u.Close()

	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Errorf("base path not created: %v", err)
	}

	if _, err := NewFileUploader(FileConfig{}, testLogger()); err == nil {
		t.Error("NewFileUploader() expected error for empty base path")
	}
}

func TestFileUploader_Upload(t *testing.T) {
	src := filepath.Join(t.TempDir(), "errors.log")
	writeFile(t, src, "one\ntwo")

	base := t.TempDir()
	u, err := NewFileUploader(FileConfig{BasePath: base}, testLogger())
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}

	if err := u.Upload(context.Background(), src, "archive/app/errors.log"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(base, "archive", "app", "errors.log"))
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "one\ntwo" {
		t.Errorf("copy = %q, want %q", got, "one\ntwo")
	}

	parts, _ := filepath.Glob(filepath.Join(base, "archive", "app", ".*.part"))
	if len(parts) != 0 {
		t.Errorf("leftover partial files: %v", parts)
	}
}

func TestFileUploader_UploadMissingSource(t *testing.T) {
	u, err := NewFileUploader(FileConfig{BasePath: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}

	err = u.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.log"), "gone.log")
	var storageErr *apperrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Upload() error = %v, want StorageError", err)
	}
	if storageErr.Operation != "open" {
		t.Errorf("Operation = %q, want open", storageErr.Operation)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error does not wrap os.ErrNotExist: %v", err)
	}
}

func TestFileUploader_UploadCanceled(t *testing.T) {
	u, err := NewFileUploader(FileConfig{BasePath: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("NewFileUploader() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := u.Upload(ctx, "ignored", "ignored"); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload() error = %v, want context.Canceled", err)
	}
}
