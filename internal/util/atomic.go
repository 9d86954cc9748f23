//nolint:revive // var-naming - package name is meaningful
package util

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
)

// WriteFileAtomic writes data to a temp file next to name and renames it
// over name, so readers see either the old or the new content. The data is
// flushed to disk before the rename when the file supports Sync.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	dir := filepath.Dir(name)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp, err := fs.TempFile(dir, "."+filepath.Base(name)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if f, ok := tmp.(interface{ Sync() error }); ok {
		if err := f.Sync(); err != nil {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
