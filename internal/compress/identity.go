package compress

import (
	"io"

	"github.com/jittakal/kafeventsink/pkg/compress"
)

type identity struct {
	ext string
}

func newIdentity(opts Options) (compress.Strategy, error) {
	return identity{ext: opts.Extension}, nil
}

func (i identity) Wrap(w io.WriteCloser) (compress.Stream, error) {
	return passthrough{w}, nil
}

func (i identity) Extension() string { return i.ext }

func (i identity) Name() string { return IdentityName }

// passthrough writes straight to the file; the writer's own buffer sits in front of it.
type passthrough struct {
	io.WriteCloser
}

func (passthrough) Flush() error { return nil }
