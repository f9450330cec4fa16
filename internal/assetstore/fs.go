// Package assetstore keeps downloaded wheel images on the local file
// system, one file per asset named id.format. Writes are atomic so a
// crash never leaves a partial image behind.
package assetstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
)

// Store is the asset cache contract the chart service depends on.
type Store interface {
	Save(id, format string, data []byte) error
	Load(id, format string) ([]byte, error)
	Delete(id, format string) error
	List() ([]astro.AssetReference, error)
	TotalSize() (int64, error)
}

// allowedFormats whitelists asset file extensions; anything else is
// rejected before touching the disk.
var allowedFormats = map[string]bool{
	"svg":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// FS implements Store backed by a flat directory.
type FS struct {
	root string
}

var _ Store = (*FS)(nil)

// NewFS creates a store rooted at the given directory. The directory
// must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("assetstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("assetstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assetstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute store directory.
func (f *FS) Root() string {
	return f.root
}

// fileName validates the id and format and returns the absolute path.
// Ids are restricted to uuid-shaped characters so a crafted id can never
// escape the root.
func (f *FS) fileName(id, format string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("assetstore: invalid asset id: %q", id)
	}
	if !allowedFormats[format] {
		return "", fmt.Errorf("assetstore: unsupported format: %q", format)
	}
	return filepath.Join(f.root, id+"."+format), nil
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Save atomically writes the asset: tmp file → fsync → rename.
func (f *FS) Save(id, format string, data []byte) error {
	abs, err := f.fileName(id, format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".astro-tmp-*")
	if err != nil {
		return fmt.Errorf("assetstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("assetstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("assetstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("assetstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("assetstore: rename: %w", err)
	}
	success = true
	return nil
}

// Load returns the asset bytes.
func (f *FS) Load(id, format string) ([]byte, error) {
	abs, err := f.fileName(id, format)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("assetstore: read %s.%s: %w", id, format, err)
	}
	return data, nil
}

// Delete removes the asset file. Deleting an absent asset is not an
// error; eviction and reconciliation may race over the same file.
func (f *FS) Delete(id, format string) error {
	abs, err := f.fileName(id, format)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("assetstore: delete %s.%s: %w", id, format, err)
	}
	return nil
}

// List returns a reference for every recognizable asset file in the
// store. Temp files and foreign extensions are skipped.
func (f *FS) List() ([]astro.AssetReference, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("assetstore: list: %w", err)
	}
	var out []astro.AssetReference
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ref, ok := parseFileName(e.Name()); ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

// TotalSize sums the bytes of every stored asset.
func (f *FS) TotalSize() (int64, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return 0, fmt.Errorf("assetstore: total size: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := parseFileName(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// parseFileName splits id.format, accepting only valid ids and
// whitelisted formats.
func parseFileName(name string) (astro.AssetReference, bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return astro.AssetReference{}, false
	}
	id, format := name[:i], name[i+1:]
	if !validID(id) || !allowedFormats[format] {
		return astro.AssetReference{}, false
	}
	return astro.AssetReference{ID: id, Format: format}, true
}
