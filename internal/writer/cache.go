package writer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/compress"
)

const (
	DefaultIdleTimeout  = time.Hour
	DefaultFlushTimeout = time.Minute
	DefaultCheckPeriod  = time.Minute
)

// MetricsCollector receives writer lifecycle counts.
type MetricsCollector interface {
	IncFilesCreated()
	IncFilesClosed()
	IncFilesFailed()
	SetOpenWriters(n int)
}

type noopMetrics struct{}

func (noopMetrics) IncFilesCreated() {}
func (noopMetrics) IncFilesClosed() {}
func (noopMetrics) IncFilesFailed() {}
func (noopMetrics) SetOpenWriters(int) {}

// Config configures a Cache.
type Config struct {
	// Root is the output directory. Required.
	Root string
	// Separator is written between records. Empty concatenates records.
	Separator []byte
	// IdleTimeout closes and publishes writers idle for longer.
	IdleTimeout time.Duration
	// FlushTimeout flushes writers idle for longer.
	FlushTimeout time.Duration
	// CheckPeriod is the sweep interval.
	CheckPeriod time.Duration
	// BufferSize is the per-writer record buffer.
	BufferSize int
}

// DefaultConfig returns a config with every timing default set.
func DefaultConfig(root string) Config {
	return Config{
		Root:         root,
		Separator:    []byte("\n"),
		IdleTimeout:  DefaultIdleTimeout,
		FlushTimeout: DefaultFlushTimeout,
		CheckPeriod:  DefaultCheckPeriod,
		BufferSize:   DefaultBufferSize,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Root == "" {
		return &apperrors.ValidationError{Field: "root", Reason: "output directory is required"}
	}
	if c.IdleTimeout <= 0 {
		return &apperrors.ValidationError{Field: "idle_timeout", Reason: fmt.Sprintf("must be positive, got %s", c.IdleTimeout)}
	}
	if c.FlushTimeout <= 0 {
		return &apperrors.ValidationError{Field: "flush_timeout", Reason: fmt.Sprintf("must be positive, got %s", c.FlushTimeout)}
	}
	if c.CheckPeriod <= 0 {
		return &apperrors.ValidationError{Field: "check_period", Reason: fmt.Sprintf("must be positive, got %s", c.CheckPeriod)}
	}
	if c.BufferSize < 0 {
		return &apperrors.ValidationError{Field: "buffer_size", Reason: "must not be negative"}
	}
	return nil
}

// Option customizes a Cache.
type Option func(*Cache)

// WithPublishHook registers fn to receive the path of every published file.
// fn runs on the goroutine that closed the writer and must not block for long.
func WithPublishHook(fn func(path string)) Option {
	return func(c *Cache) {
		c.onPublish = fn
	}
}

// WithClock replaces time.Now for idle accounting and temp names.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache maps routing keys to live writers and sweeps idle ones.
//
// At most one writer exists per normalized key. Creation runs under a single lock with
// a re-check, so concurrent first requests for a key open exactly one file.
type Cache struct {
	cfg      Config
	strategy compress.Strategy
	logger   *slog.Logger
	metrics  MetricsCollector

	onPublish func(path string)
	now       func() time.Time

	mu      sync.RWMutex
	writers map[string]*Writer
	closed  bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCache validates cfg and starts the idle sweep.
func NewCache(cfg Config, strategy compress.Strategy, logger *slog.Logger, metrics MetricsCollector, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid writer cache config: %w", err)
	}
	if strategy == nil {
		return nil, errors.New("compression strategy is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.FlushTimeout > cfg.IdleTimeout {
		logger.Warn("flush timeout exceeds idle timeout, idle writers will be closed without an intermediate flush",
			"flush_timeout", cfg.FlushTimeout,
			"idle_timeout", cfg.IdleTimeout)
	}

	c := &Cache{
		cfg:      cfg,
		strategy: strategy,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		writers:  make(map[string]*Writer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()

	logger.Info("writer cache started",
		"root", cfg.Root,
		"compression", strategy.Name(),
		"extension", strategy.Extension(),
		"idle_timeout", cfg.IdleTimeout,
		"flush_timeout", cfg.FlushTimeout,
		"check_period", cfg.CheckPeriod)
	return c, nil
}

// Get returns the live writer for key, opening a new one on first use.
// A failed open leaves no entry, so the next call retries.
func (c *Cache) Get(key string) (*Writer, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, apperrors.ErrCacheClosed
	}
	w, ok := c.writers[name]
	c.mu.RUnlock()
	if ok {
		return w, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apperrors.ErrCacheClosed
	}
	// Double-check after acquiring write lock
	if w, ok := c.writers[name]; ok {
		return w, nil
	}

	p, err := ResolvePath(c.cfg.Root, name)
	if err != nil {
		return nil, err
	}
	w = NewWriter(p, WriterConfig{
		Strategy:   c.strategy,
		Separator:  c.cfg.Separator,
		BufferSize: c.cfg.BufferSize,
		Logger:     c.logger,
		Clock:      c.now,
	})
	if err := w.Open(); err != nil {
		c.metrics.IncFilesFailed()
		c.logger.Error("failed to open file writer",
			"key", name,
			"error", err)
		return nil, err
	}

	c.writers[name] = w
	c.metrics.IncFilesCreated()
	c.metrics.SetOpenWriters(len(c.writers))
	return w, nil
}

// Len returns the number of live writers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.writers)
}

// Closed reports whether Shutdown has run.
func (c *Cache) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Cache) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep closes writers idle beyond IdleTimeout and flushes those idle beyond FlushTimeout.
// Writers to close leave the map before any I/O happens.
func (c *Cache) sweep() {
	now := c.now()

	var toClose, toFlush []*Writer

	c.mu.Lock()
	for name, w := range c.writers {
		idle := now.Sub(w.LastWriteTime())
		switch {
		case idle > c.cfg.IdleTimeout:
			toClose = append(toClose, w)
			delete(c.writers, name)
		case idle > c.cfg.FlushTimeout:
			toFlush = append(toFlush, w)
		}
	}
	open := len(c.writers)
	c.mu.Unlock()

	c.metrics.SetOpenWriters(open)

	for _, w := range toClose {
		c.closeWriter(w)
	}

	for _, w := range toFlush {
		err := w.Flush()
		if err == nil {
			continue
		}
		if errors.Is(err, apperrors.ErrWriterClosed) {
			// Closed by Shutdown since the scan.
			continue
		}

		c.logger.Error("failed to flush idle writer, closing it",
			"key", w.Name(),
			"error", err)
		c.metrics.IncFilesFailed()
		c.remove(w)
		c.closeWriter(w)
	}

	if len(toClose) > 0 || len(toFlush) > 0 {
		c.logger.Debug("idle sweep finished",
			"closed", len(toClose),
			"flushed", len(toFlush),
			"open", open)
	}
}

// remove drops w from the map unless the key already points at a newer writer.
func (c *Cache) remove(w *Writer) {
	c.mu.Lock()
	if cur, ok := c.writers[w.Name()]; ok && cur == w {
		delete(c.writers, w.Name())
	}
	open := len(c.writers)
	c.mu.Unlock()

	c.metrics.SetOpenWriters(open)
}

func (c *Cache) closeWriter(w *Writer) error {
	final, err := w.Close()
	c.metrics.IncFilesClosed()
	if err != nil {
		c.logger.Error("failed to publish file",
			"key", w.Name(),
			"path", w.TempPath(),
			"error", err)
		return fmt.Errorf("close writer %s: %w", w.Name(), err)
	}

	c.logger.Info("file published",
		"key", w.Name(),
		"path", final)
	if c.onPublish != nil {
		c.onPublish(final)
	}
	return nil
}

// Shutdown stops the sweep and closes every live writer. Later calls are no-ops.
func (c *Cache) Shutdown() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	writers := c.writers
	c.writers = make(map[string]*Writer)
	c.mu.Unlock()

	var errs []error
	for _, w := range writers {
		if err := c.closeWriter(w); err != nil {
			errs = append(errs, err)
		}
	}
	c.metrics.SetOpenWriters(0)

	c.logger.Info("writer cache shut down", "closed", len(writers))
	return errors.Join(errs...)
}
