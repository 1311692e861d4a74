package compress

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jittakal/kafeventsink/pkg/compress"
)

// encoder is the part of a codec writer the stream drives.
type encoder interface {
	io.Writer
	Flush() error
	Close() error
}

// codecStream layers encoder -> bufio -> file.
type codecStream struct {
	enc       encoder
	buf       *bufio.Writer
	file      io.WriteCloser
	syncFlush bool
}

func (s *codecStream) Write(p []byte) (int, error) {
	return s.enc.Write(p)
}

func (s *codecStream) Flush() error {
	if s.syncFlush {
		if err := s.enc.Flush(); err != nil {
			return fmt.Errorf("codec flush: %w", err)
		}
	}
	return s.buf.Flush()
}

// Close finalizes the codec and always closes the file.
func (s *codecStream) Close() error {
	var errs []error
	if err := s.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("codec close: %w", err))
	}
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("buffer flush: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("file close: %w", err))
	}
	return errors.Join(errs...)
}

// codec is a strategy backed by a stream encoder constructor.
type codec struct {
	name   string
	ext    string
	opts   Options
	newEnc func(w io.Writer, opts Options) (encoder, error)
}

func (c *codec) Wrap(w io.WriteCloser) (compress.Stream, error) {
	buf := bufio.NewWriterSize(w, c.opts.BufferSize)
	enc, err := c.newEnc(buf, c.opts)
	if err != nil {
		return nil, fmt.Errorf("%s writer: %w", c.name, err)
	}
	return &codecStream{
		enc:       enc,
		buf:       buf,
		file:      w,
		syncFlush: c.opts.SyncFlush,
	}, nil
}

func (c *codec) Extension() string { return c.ext }

func (c *codec) Name() string { return c.name }

func newGzip(opts Options) (compress.Strategy, error) {
	level := opts.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	if level < gzip.StatelessCompression || level > gzip.BestCompression {
		return nil, fmt.Errorf("invalid gzip level %d", opts.Level)
	}
	opts.Level = level

	return &codec{
		name: "gzip",
		ext:  opts.Extension + ".gz",
		opts: opts,
		newEnc: func(w io.Writer, o Options) (encoder, error) {
			return gzip.NewWriterLevel(w, o.Level)
		},
	}, nil
}

func newZstd(opts Options) (compress.Strategy, error) {
	if opts.Level < 0 || opts.Level > 22 {
		return nil, fmt.Errorf("invalid zstd level %d", opts.Level)
	}

	return &codec{
		name: "zstd",
		ext:  opts.Extension + ".zst",
		opts: opts,
		newEnc: func(w io.Writer, o Options) (encoder, error) {
			encOpts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
			if o.Level > 0 {
				encOpts = append(encOpts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(o.Level)))
			}
			return zstd.NewWriter(w, encOpts...)
		},
	}, nil
}

func newSnappy(opts Options) (compress.Strategy, error) {
	if opts.Level != 0 {
		return nil, fmt.Errorf("snappy has no compression levels")
	}

	return &codec{
		name: "snappy",
		ext:  opts.Extension + ".sz",
		opts: opts,
		newEnc: func(w io.Writer, _ Options) (encoder, error) {
			return snappy.NewBufferedWriter(w), nil
		},
	}, nil
}
