package compress

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jittakal/kafeventsink/pkg/compress"
)

const (
	// DefaultExtension is used when no extension is configured.
	DefaultExtension = ".log"

	// DefaultBufferSize is the codec output buffer size in bytes.
	DefaultBufferSize = 512

	// IdentityName is the registered name of the pass-through strategy.
	IdentityName = "identity"
)

// Options carries the strategy-specific parameters.
type Options struct {
	// Extension is the base extension of published files. A missing leading dot is added.
	Extension  string
	BufferSize int
	SyncFlush  bool
	// Level is the codec compression level. Zero selects the codec default.
	Level int
}

func (o Options) withDefaults() Options {
	o.Extension = NormalizeExtension(o.Extension)
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// NormalizeExtension returns ext with a leading dot, or DefaultExtension when ext is blank.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Factory builds a strategy from options.
type Factory func(opts Options) (compress.Strategy, error)

type entry struct {
	name    string
	factory Factory
}

// Registry maps strategy names and aliases to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns a registry holding only the identity strategy.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	r.MustRegister(IdentityName, newIdentity, "text", "none", "plain")
	return r
}

var defaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("gzip", newGzip, "gz")
	r.MustRegister("zstd", newZstd, "zst", "zstandard")
	r.MustRegister("snappy", newSnappy, "sz")
	return r
}

// Default returns the registry with all built-in strategies.
func Default() *Registry {
	return defaultRegistry
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a factory under name and its aliases. Duplicate names are rejected.
func (r *Registry) Register(name string, factory Factory, aliases ...string) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("strategy name is required")
	}
	if factory == nil {
		return fmt.Errorf("strategy %s: factory is nil", key)
	}

	keys := []string{key}
	for _, alias := range aliases {
		if a := normalizeName(alias); a != "" {
			keys = append(keys, a)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if _, exists := r.entries[k]; exists {
			return fmt.Errorf("strategy %s already registered", k)
		}
	}
	for _, k := range keys {
		r.entries[k] = entry{name: key, factory: factory}
	}
	return nil
}

// MustRegister panics when Register fails.
func (r *Registry) MustRegister(name string, factory Factory, aliases ...string) {
	if err := r.Register(name, factory, aliases...); err != nil {
		panic(err)
	}
}

// Names returns the sorted canonical strategy names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the strategy registered under name.
func (r *Registry) Lookup(name string, opts Options) (compress.Strategy, error) {
	key := normalizeName(name)

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown compression strategy %q", name)
	}

	return build(e, opts.withDefaults())
}

func build(e entry, opts Options) (s compress.Strategy, err error) {
	defer func() {
		if p := recover(); p != nil {
			s, err = nil, fmt.Errorf("strategy %s: factory panicked: %v", e.name, p)
		}
	}()

	s, err = e.factory(opts)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", e.name, err)
	}
	if s == nil {
		return nil, fmt.Errorf("strategy %s: factory returned no strategy", e.name)
	}
	return s, nil
}

// Resolve returns the strategy for name, falling back to identity on any failure.
func (r *Registry) Resolve(name string, opts Options, logger *slog.Logger) compress.Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	if normalizeName(name) == "" {
		return identity{ext: opts.Extension}
	}

	s, err := r.Lookup(name, opts)
	if err != nil {
		logger.Error("compression strategy unavailable, falling back to identity",
			"strategy", name,
			"error", err)
		return identity{ext: opts.Extension}
	}

	logger.Info("compression strategy resolved",
		"strategy", s.Name(),
		"extension", s.Extension())
	return s
}

// Resolve resolves name against the default registry.
func Resolve(name string, opts Options, logger *slog.Logger) compress.Strategy {
	return defaultRegistry.Resolve(name, opts, logger)
}
