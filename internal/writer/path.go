package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/jittakal/kafeventsink/internal/errors"
)

// maxCollisionProbes bounds the " (n)" search for an unused final name.
const maxCollisionProbes = 100000

// Path is a routing key resolved under the output root.
type Path struct {
	// Key is the normalized routing key.
	Key string
	// Dir is the parent directory of the output files.
	Dir string
	// Name is the leaf name shared by the temp and final files.
	Name string
}

// NormalizeKey turns a routing key into a slash separated relative path.
// Backslashes count as separators. Leading and trailing separators are dropped and
// dot segments are resolved without ever climbing above the root.
func NormalizeKey(key string) (string, error) {
	k := strings.ReplaceAll(key, `\`, "/")
	k = strings.TrimPrefix(path.Clean("/"+k), "/")
	if k == "" {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidKey, key)
	}
	return k, nil
}

// ResolvePath splits a routing key into the parent directory under root and the leaf name.
func ResolvePath(root, key string) (Path, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return Path{}, err
	}

	p := Path{Key: normalized, Dir: root, Name: normalized}
	if i := strings.LastIndexByte(normalized, '/'); i >= 0 {
		p.Dir = filepath.Join(root, filepath.FromSlash(normalized[:i]))
		p.Name = normalized[i+1:]
	}
	return p, nil
}

// TempPath returns the path of the in-progress file created at the given time.
func (p Path) TempPath(created time.Time) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s.%d.tmp", p.Name, created.UnixMilli()))
}

// FinalPath returns the first unused published name for ext, probing
// "name ext", "name (1) ext", "name (2) ext" and so on.
// The probe is not atomic with the rename that follows it.
func (p Path) FinalPath(ext string) (string, error) {
	for n := 0; n < maxCollisionProbes; n++ {
		name := p.Name + ext
		if n > 0 {
			name = fmt.Sprintf("%s (%d)%s", p.Name, n, ext)
		}
		candidate := filepath.Join(p.Dir, name)

		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", &apperrors.StorageError{Operation: "publish", Path: candidate, Err: err}
		}
	}
	return "", &apperrors.StorageError{
		Operation: "publish",
		Path:      filepath.Join(p.Dir, p.Name+ext),
		Err:       fmt.Errorf("no unused name after %d probes", maxCollisionProbes),
	}
}
