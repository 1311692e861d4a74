package writer

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/compress"
)

const (
	// DefaultBufferSize is the record buffer placed in front of the compression stream.
	DefaultBufferSize = 64 * 1024

	// maxTempAttempts bounds the temp name retries when two writers share a millisecond.
	maxTempAttempts = 64
)

type writeState int

const (
	stateNoRecordYet writeState = iota
	stateRecordWritten
)

// WriterConfig holds the settings shared by every writer of a cache.
type WriterConfig struct {
	Strategy   compress.Strategy
	Separator  []byte
	BufferSize int
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Writer owns one temp file and publishes it on Close.
//
// Writes, flushes and Close are serialized by an internal mutex so the idle sweep can
// flush or close a writer while a caller holds it. Record ordering across concurrent
// callers of the same key is not defined; callers deliver one key from one goroutine.
type Writer struct {
	path      Path
	strategy  compress.Strategy
	separator []byte
	bufSize   int
	logger    *slog.Logger
	now       func() time.Time

	// lastWrite is unix nanoseconds, read by the sweep without taking mu.
	lastWrite atomic.Int64

	mu       sync.Mutex
	created  time.Time
	tempPath string
	stream   compress.Stream
	buf      *bufio.Writer
	state    writeState
	closed   bool
}

// NewWriter creates a writer for p. Nothing touches the disk until Open.
func NewWriter(p Path, cfg WriterConfig) *Writer {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	created := cfg.Clock()
	w := &Writer{
		path:      p,
		strategy:  cfg.Strategy,
		separator: cfg.Separator,
		bufSize:   cfg.BufferSize,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		created:   created,
		tempPath:  p.TempPath(created),
	}
	w.lastWrite.Store(created.UnixNano())
	return w
}

// Open creates the parent directory and the temp file, then wraps it with the strategy.
// On failure nothing is left on disk except the directories.
func (w *Writer) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return apperrors.ErrWriterClosed
	}

	if err := os.MkdirAll(w.path.Dir, 0o755); err != nil {
		return &apperrors.StorageError{Operation: "open", Path: w.path.Dir, Err: err}
	}

	var file *os.File
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(w.tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			file = f
			break
		}
		if !errors.Is(err, os.ErrExist) || attempt+1 >= maxTempAttempts {
			return &apperrors.StorageError{Operation: "open", Path: w.tempPath, Err: err}
		}
		w.created = w.created.Add(time.Millisecond)
		w.tempPath = w.path.TempPath(w.created)
	}

	stream, err := w.strategy.Wrap(file)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(w.tempPath)
		return &apperrors.StorageError{Operation: "open", Path: w.tempPath, Err: err}
	}

	w.stream = stream
	w.buf = bufio.NewWriterSize(stream, w.bufSize)

	w.logger.Debug("file writer opened",
		"key", w.path.Key,
		"path", w.tempPath,
		"compression", w.strategy.Name())
	return nil
}

// Write appends body, preceded by the separator unless it is the first record.
// An empty body is ignored and does not count as activity.
func (w *Writer) Write(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.buf == nil {
		return apperrors.ErrWriterClosed
	}

	w.lastWrite.Store(w.now().UnixNano())

	if w.state == stateRecordWritten && len(w.separator) > 0 {
		if _, err := w.buf.Write(w.separator); err != nil {
			return &apperrors.StorageError{Operation: "write", Path: w.tempPath, Err: err}
		}
	}
	if _, err := w.buf.Write(body); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: w.tempPath, Err: err}
	}
	w.state = stateRecordWritten
	return nil
}

// Flush pushes buffered records through the compression stream to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.buf == nil {
		return apperrors.ErrWriterClosed
	}

	if err := w.buf.Flush(); err != nil {
		return &apperrors.StorageError{Operation: "flush", Path: w.tempPath, Err: err}
	}
	if err := w.stream.Flush(); err != nil {
		return &apperrors.StorageError{Operation: "flush", Path: w.tempPath, Err: err}
	}
	return nil
}

// Close flushes and closes the stream, then renames the temp file to its final name.
// Stream errors are logged and do not stop the rename. The rename is attempted even
// when Open never succeeded. It returns the published path.
func (w *Writer) Close() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", apperrors.ErrWriterClosed
	}
	w.closed = true

	if w.buf != nil {
		if err := w.buf.Flush(); err != nil {
			w.logger.Error("failed to flush writer on close",
				"key", w.path.Key,
				"path", w.tempPath,
				"error", err)
		}
	}
	if w.stream != nil {
		if err := w.stream.Close(); err != nil {
			w.logger.Error("failed to close output stream",
				"key", w.path.Key,
				"path", w.tempPath,
				"error", err)
		}
	}
	w.buf = nil
	w.stream = nil

	final, err := w.path.FinalPath(w.strategy.Extension())
	if err != nil {
		return "", err
	}
	if err := os.Rename(w.tempPath, final); err != nil {
		return "", &apperrors.StorageError{
			Operation: "publish",
			Path:      final,
			Err:       fmt.Errorf("rename %s: %w", w.tempPath, err),
		}
	}

	w.logger.Debug("file published",
		"key", w.path.Key,
		"path", final)
	return final, nil
}

// LastWriteTime returns the time of the last non-empty write, or the creation time.
func (w *Writer) LastWriteTime() time.Time {
	return time.Unix(0, w.lastWrite.Load())
}

// Name returns the normalized routing key.
func (w *Writer) Name() string {
	return w.path.Key
}

// TempPath returns the current temp file path.
func (w *Writer) TempPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tempPath
}
