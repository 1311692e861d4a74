// Package compress implements the output compression strategies of the file sink.
//
// Strategies are looked up by name in a Registry. Resolution never fails: an empty
// name, an unknown name or a factory that cannot build its strategy all yield the
// identity strategy, and the reason is logged.
//
// # Built-in Strategies
//
//   - identity (aliases: text, none, plain): bytes pass through, extension unchanged
//   - gzip (alias: gz): klauspost gzip, extension + ".gz"
//   - zstd (aliases: zst, zstandard): klauspost zstd, extension + ".zst"
//   - snappy (alias: sz): framed snappy, extension + ".sz"
//
// # Usage
//
//	strategy := compress.Resolve("gzip", compress.Options{
//	    Extension:  ".log",
//	    BufferSize: 512,
//	}, logger)
//	stream, err := strategy.Wrap(file)
//
// Every codec buffers its output through a bufio.Writer of Options.BufferSize bytes.
// Stream.Flush pushes that buffer to the file. With Options.SyncFlush set, Flush also
// forces the codec to emit a sync block first so flushed bytes are decodable.
package compress
