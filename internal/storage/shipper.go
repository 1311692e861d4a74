package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgstorage "github.com/jittakal/kafeventsink/pkg/storage"
)

// Shipper defaults.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 1024
)

const (
	uploadSuccess = "success"
	uploadFailure = "failure"
)

// Shipper uploads published files in the background.
// Enqueue is meant to be installed as the writer cache publish hook.
type Shipper struct {
	uploader    pkgstorage.Uploader
	root        string
	prefix      string
	deleteAfter bool
	timeout     time.Duration
	logger      *slog.Logger
	metrics     MetricsCollector

	queue chan string
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewShipper starts cfg.Workers upload workers. root is the sink directory that
// object keys are made relative to.
func NewShipper(cfg Config, root string, uploader pkgstorage.Uploader, logger *slog.Logger, metrics MetricsCollector) (*Shipper, error) {
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sink root: %w", err)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	s := &Shipper{
		uploader:    uploader,
		root:        absRoot,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		deleteAfter: cfg.DeleteAfterUpload,
		timeout:     cfg.UploadTimeout,
		logger:      logger,
		metrics:     metrics,
		queue:       make(chan string, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	logger.Info("archive shipper started",
		"backend", uploader.Backend(),
		"workers", workers,
		"queue_size", queueSize,
		"prefix", s.prefix,
		"delete_after_upload", s.deleteAfter,
	)
	return s, nil
}

// Enqueue schedules path for upload. It blocks while the queue is full.
// Paths enqueued after Close are dropped with a warning.
func (s *Shipper) Enqueue(path string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("archive shipper closed, file not shipped", "path", path)
		return
	}
	s.queue <- path
	s.metrics.SetArchiveQueueDepth(len(s.queue))
}

// ObjectKey maps a published file path to its key in the archive.
func (s *Shipper) ObjectKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside sink root %s", path, s.root)
	}
	if s.prefix == "" {
		return rel, nil
	}
	return s.prefix + "/" + rel, nil
}

func (s *Shipper) worker() {
	defer s.wg.Done()
	for path := range s.queue {
		s.metrics.SetArchiveQueueDepth(len(s.queue))
		s.ship(path)
	}
}

func (s *Shipper) ship(path string) {
	backend := s.uploader.Backend()

	key, err := s.ObjectKey(path)
	if err != nil {
		s.metrics.IncArchiveUploads(backend, uploadFailure)
		s.logger.Error("cannot derive archive key", "path", path, "error", err)
		return
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err = s.uploader.Upload(ctx, path, key)
	s.metrics.ObserveArchiveUploadDuration(backend, time.Since(start).Seconds())
	if err != nil {
		s.metrics.IncArchiveUploads(backend, uploadFailure)
		s.logger.Error("archive upload failed",
			"backend", backend,
			"path", path,
			"key", key,
			"error", err)
		return
	}
	s.metrics.IncArchiveUploads(backend, uploadSuccess)
	s.logger.Info("file archived", "backend", backend, "path", path, "key", key)

	if s.deleteAfter {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove archived file", "path", path, "error", err)
		}
	}
}

// Close stops accepting paths, waits for queued uploads and closes the uploader.
// Calling Close more than once is safe.
func (s *Shipper) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	s.metrics.SetArchiveQueueDepth(0)
	s.logger.Info("archive shipper stopped")
	return s.uploader.Close()
}

type noopMetrics struct{}

func (noopMetrics) IncArchiveUploads(string, string) {}

func (noopMetrics) ObserveArchiveUploadDuration(string, float64) {}

func (noopMetrics) SetArchiveQueueDepth(int) {}
