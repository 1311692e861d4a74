package writer

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jittakal/kafeventsink/internal/compress"
	pkgcompress "github.com/jittakal/kafeventsink/pkg/compress"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identityStrategy() pkgcompress.Strategy {
	return compress.Resolve("", compress.Options{}, testLogger())
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockMetrics implements MetricsCollector for testing.
type mockMetrics struct {
	created atomic.Int64
	closed  atomic.Int64
	failed  atomic.Int64
	open    atomic.Int64
}

func (m *mockMetrics) IncFilesCreated() { m.created.Add(1) }
func (m *mockMetrics) IncFilesClosed() { m.closed.Add(1) }
func (m *mockMetrics) IncFilesFailed() { m.failed.Add(1) }
func (m *mockMetrics) SetOpenWriters(n int) { m.open.Store(int64(n)) }

// flakyStrategy fails Flush for files whose name contains failOn.
type flakyStrategy struct {
	failOn string
}

func (s flakyStrategy) Wrap(w io.WriteCloser) (pkgcompress.Stream, error) {
	name := ""
	if f, ok := w.(*os.File); ok {
		name = filepath.Base(f.Name())
	}
	return &flakyStream{WriteCloser: w, fail: s.failOn != "" && strings.Contains(name, s.failOn)}, nil
}

func (flakyStrategy) Extension() string { return ".log" }

func (flakyStrategy) Name() string { return "flaky" }

type flakyStream struct {
	io.WriteCloser
	fail bool
}

func (s *flakyStream) Flush() error {
	if s.fail {
		return errors.New("device lost")
	}
	return nil
}

// brokenStrategy cannot wrap any file.
type brokenStrategy struct{}

func (brokenStrategy) Wrap(io.WriteCloser) (pkgcompress.Stream, error) {
	return nil, errors.New("codec unavailable")
}

func (brokenStrategy) Extension() string { return ".log" }

func (brokenStrategy) Name() string { return "broken" }

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func globFiles(t *testing.T, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	return matches
}

func findTempFiles(t *testing.T, root string) []string {
	t.Helper()
	var temps []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".tmp") {
			temps = append(temps, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return temps
}
