package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"leitstand/pkg/domain"
)

// BaseDir is the trusted root every resolved path must stay under. It holds
// an absolute, symlink-free path and is immutable once opened.
type BaseDir struct {
	path string
}

// OpenBaseDir creates path (with parents) if needed and canonicalizes it.
// Meant to run once at startup: a failure here should abort the process.
func OpenBaseDir(path string) (BaseDir, error) {
	if path == "" {
		return BaseDir{}, fmt.Errorf("base directory path is empty")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return BaseDir{}, fmt.Errorf("create base directory %s: %w", path, err)
	}
	canonical, err := canonicalDir(path)
	if err != nil {
		return BaseDir{}, err
	}
	return BaseDir{path: canonical}, nil
}

// Path returns the canonical base directory.
func (b BaseDir) Path() string {
	return b.path
}

// IsZero reports whether b was never opened.
func (b BaseDir) IsZero() bool {
	return b.path == ""
}

// SafeTargetPath resolves raw below b. See SafeTargetPath.
func (b BaseDir) SafeTargetPath(raw string) (string, error) {
	return SafeTargetPath(raw, b.path)
}

// canonicalDir returns the absolute, symlink-resolved form of dir. dir must
// exist and be a directory.
func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("absolute path of %s: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", abs, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", real, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", real)
	}
	return real, nil
}

// ResolveName resolves an already validated name below b.
func (b BaseDir) ResolveName(name domain.Name) (string, error) {
	return ResolveName(name, b.path)
}
