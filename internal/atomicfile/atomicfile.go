// Package atomicfile writes files so that readers observe either the old
// content or the complete new content, never a partial write.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// ErrExists is returned by [WriteNew] when path is already taken.
var ErrExists = fs.ErrExist

// WriteFile replaces path with data. The bytes are written to a temporary
// file in the same directory, synced, and renamed over path.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, func(tmp string) error {
		return os.Rename(tmp, path)
	})
}

// WriteNew creates path with data and fails with an error wrapping
// [ErrExists] if path already exists. An existing file is never modified.
func WriteNew(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, func(tmp string) error {
		// A hard link fails on an existing target, which a rename would
		// silently replace.
		if err := os.Link(tmp, path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%s: %w", path, ErrExists)
			}
			return err
		}
		return os.Remove(tmp)
	})
}

func write(path string, data []byte, perm os.FileMode, commit func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := commit(tmpName); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
