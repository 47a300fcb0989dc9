// Package atomicfile provides crash-safe file writes for the daemon's two
// on-disk stores: the service catalog and the port registry.
package atomicfile

import (
	"os"
	"path/filepath"
)

// Write writes data to path atomically by writing to a sibling temporary
// file first, fsyncing, and then renaming it into place. This prevents
// corruption from crashes mid-write and is used by every writer that owns
// a JSON file under the daemon's single-actor discipline.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
