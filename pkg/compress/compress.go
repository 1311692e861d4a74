// Package compress defines the contract for output compression strategies.
//
// A Strategy wraps the raw temp file of a writer with an optional codec and reports
// the file extension that codec implies.
package compress

import "io"

// Stream is a wrapped output stream.
type Stream interface {
	io.Writer

	// Flush pushes buffered bytes towards the underlying file.
	Flush() error

	// Close finalizes the codec and closes the underlying file.
	Close() error
}

// Strategy wraps raw output streams with a codec.
type Strategy interface {
	// Wrap returns a stream that encodes into w. Closing the stream closes w.
	Wrap(w io.WriteCloser) (Stream, error)

	// Extension returns the extension of published files, including the leading dot.
	Extension() string

	// Name returns the registered name of the strategy.
	Name() string
}
