// Package security holds input hardening helpers for operator-supplied
// values such as file paths from CLI flags.
package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrInvalidPath   = errors.New("invalid file path")
)

// ValidateFilePath rejects empty and traversal paths. When baseDir is
// non-empty the path must also resolve inside it.
func ValidateFilePath(path, baseDir string) error {
	if path == "" {
		return ErrInvalidPath
	}

	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return ErrPathTraversal
	}

	if baseDir == "" {
		return nil
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return err
	}
	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	return nil
}
