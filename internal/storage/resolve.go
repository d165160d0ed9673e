package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
)

// SafeTargetPath validates raw, derives its filename and returns the absolute
// path of that file below base. base must already exist; it is canonicalized
// on every call and never created here.
//
// Every rejection of the domain is a *domain.DomainError. A base directory
// that cannot be canonicalized is reported as an internal error instead.
func SafeTargetPath(raw, base string) (string, error) {
	name, err := domain.ParseName(raw)
	if err != nil {
		return "", err
	}
	return resolve(raw, name, base)
}

// ResolveName is SafeTargetPath for a name that has already been parsed.
func ResolveName(name domain.Name, base string) (string, error) {
	if name.IsZero() {
		return "", domain.NewDomainError("", "empty domain")
	}
	return resolve(name.String(), name, base)
}

func resolve(input string, name domain.Name, base string) (string, error) {
	root, err := canonicalDir(base)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "base directory unavailable")
	}

	fname := TargetFilename(name)
	if fname == "" || fname == "." || fname == ".." || strings.ContainsAny(fname, "/\\\x00") {
		return "", domain.NewDomainError(input, "derived filename is not a single path component")
	}

	candidate := filepath.Join(root, fname)

	// SecureJoin follows symlinks already present under root while clamping
	// them to root. Any divergence from the lexical join means the name is,
	// or traverses, a link.
	joined, err := securejoin.SecureJoin(root, fname)
	if err != nil || joined != candidate {
		return "", domain.NewDomainError(input, "target path is redirected by a symlink")
	}
	if !isStrictlyUnder(candidate, root) {
		return "", domain.NewDomainError(input, "target path escapes the base directory")
	}

	real, err := filepath.EvalSymlinks(candidate)
	switch {
	case err == nil:
		if !isStrictlyUnder(real, root) {
			return "", domain.NewDomainError(input, "target path escapes the base directory")
		}
	case errors.Is(err, fs.ErrNotExist):
		// not created yet
	default:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "inspect target path")
	}

	return candidate, nil
}

// isStrictlyUnder reports whether path is a descendant of root. Both must be
// clean absolute paths.
func isStrictlyUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
