package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingUploader remembers every upload and fails keys listed in failKeys.
type recordingUploader struct {
	mu       sync.Mutex
	uploads  map[string]string
	failKeys map[string]error
	closed   int
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{
		uploads:  make(map[string]string),
		failKeys: make(map[string]error),
	}
}

func (u *recordingUploader) Upload(_ context.Context, localPath, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err, ok := u.failKeys[key]; ok {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	u.uploads[key] = string(data)
	return nil
}

func (u *recordingUploader) Backend() string { return "recording" }

func (u *recordingUploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed++
	return nil
}

func (u *recordingUploader) get(key string) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.uploads[key]
	return v, ok
}

type mockArchiveMetrics struct {
	mu        sync.Mutex
	uploads   map[string]int
	durations int
}

func (m *mockArchiveMetrics) IncArchiveUploads(_ string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = make(map[string]int)
	}
	m.uploads[status]++
}

func (m *mockArchiveMetrics) ObserveArchiveUploadDuration(string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *mockArchiveMetrics) SetArchiveQueueDepth(int) {}

func (m *mockArchiveMetrics) count(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads[status]
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
