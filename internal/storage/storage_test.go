package storage

import (
	"testing"
)

func TestConfig_Enabled(t *testing.T) {
	tests := []struct {
		backend string
		want    bool
	}{
		{backend: "", want: false},
		{backend: BackendNone, want: false},
		{backend: BackendFile, want: true},
		{backend: BackendS3, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			if got := (Config{Backend: tt.backend}).Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUploader(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		u, err := NewUploader(Config{Backend: BackendFile, File: FileConfig{BasePath: t.TempDir()}}, testLogger())
		if err != nil {
			t.Fatalf("NewUploader() error = %v", err)
		}
		if u.Backend() != BackendFile {
			t.Errorf("Backend() = %q, want %q", u.Backend(), BackendFile)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := NewUploader(Config{Backend: "ftp"}, testLogger()); err == nil {
			t.Error("NewUploader() expected error for unknown backend")
		}
	})

	t.Run("missing bucket", func(t *testing.T) {
		for _, backend := range []string{BackendS3, BackendGCS, BackendAzure} {
			if _, err := NewUploader(Config{Backend: backend}, testLogger()); err == nil {
				t.Errorf("NewUploader(%s) expected error without bucket", backend)
			}
		}
	})
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "app/errors.log", want: "text/plain; charset=utf-8"},
		{name: "app/errors.log.gz", want: "application/gzip"},
		{name: "app/errors (1).log.zst", want: "application/zstd"},
		{name: "errors.log.sz", want: "application/x-snappy-framed"},
		{name: "ERRORS.LOG.GZ", want: "application/gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contentType(tt.name); got != tt.want {
				t.Errorf("contentType(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
