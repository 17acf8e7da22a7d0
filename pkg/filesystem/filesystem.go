// Package filesystem provides the filesystem abstraction used across the
// installer. Production code runs on the OS filesystem; tests substitute an
// in-memory one.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
)

// NewOS returns the real OS filesystem
func NewOS() afero.Fs {
	return afero.NewOsFs()
}

// NewMemory returns an in-memory filesystem for tests
func NewMemory() afero.Fs {
	return afero.NewMemMapFs()
}

// Exists reports whether path exists on fs
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}

// WriteFileAtomic writes data to path all-or-nothing: the bytes land in a
// temporary file in the destination directory first and are renamed into
// place, so a failure mid-write never leaves a truncated destination.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory %s", dir)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, perm); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", tmp)
	}

	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to move %s into place", path)
	}
	return nil
}

// CopyFile copies a single file from src to dst on fs, creating parent
// directories for dst. The copy is atomic with respect to dst.
func CopyFile(fs afero.Fs, src, dst string) error {
	data, err := afero.ReadFile(fs, src)
	if os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileNotFound, "no such file %s", src)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", src)
	}

	info, err := fs.Stat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", src)
	}

	return WriteFileAtomic(fs, dst, data, info.Mode().Perm())
}

// SamePath reports whether two paths resolve to the same cleaned absolute
// path. Used to detect a mirror copy onto itself in local mode.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// ListFilesRecursive walks root on fs and returns the paths of all regular
// files, relative to base. Returns an empty slice when root does not exist.
func ListFilesRecursive(fs afero.Fs, base, root string) ([]string, error) {
	if !IsDir(fs, root) {
		return nil, nil
	}

	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return fmt.Errorf("path %s outside base %s: %w", path, base, relErr)
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", root)
	}
	return files, nil
}
