// Package securefs provides path containment checks and atomic file writes
// over an afero filesystem.
package securefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/birdnet-display/internal/errors"
)

const (
	// FilePermissions is the mode for state files written by the display
	FilePermissions os.FileMode = 0o644

	dirPermissions os.FileMode = 0o755
)

// ErrPathTraversal indicates a path that escapes its base directory
var ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

// IsPathWithinBase reports whether targetPath is basePath or lies below it.
// The check is lexical so it works on in-memory filesystems.
func IsPathWithinBase(basePath, targetPath string) bool {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidateWithinBase returns ErrPathTraversal if path escapes baseDir
func ValidateWithinBase(baseDir, path string) error {
	if !IsPathWithinBase(baseDir, path) {
		return fmt.Errorf("%w: path %s is outside allowed directory %s", ErrPathTraversal, path, baseDir)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial file.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("error setting file mode: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}

// ReadFileIfExists returns the file content, or ok=false when the file does
// not exist.
func ReadFileIfExists(fs afero.Fs, path string) (data []byte, ok bool, err error) {
	data, err = afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
