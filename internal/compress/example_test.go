package compress_test

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jittakal/kafeventsink/internal/compress"
)

func ExampleResolve() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gz := compress.Resolve("gz", compress.Options{Extension: "log"}, logger)
	fmt.Println(gz.Name(), gz.Extension())

	unknown := compress.Resolve("brotli", compress.Options{}, logger)
	fmt.Println(unknown.Name(), unknown.Extension())

	// Output:
	// gzip .log.gz
	// identity .log
}
