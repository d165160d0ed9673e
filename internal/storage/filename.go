// Package storage maps validated domain names onto files below a trusted
// base directory. It derives names and proves containment; reading and
// writing the files is left to callers.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"leitstand/pkg/domain"
)

const (
	// Extension is appended to every derived filename.
	Extension = ".jsonl"
	// MaxFilenameLen is the common filesystem limit on a single path
	// component (ext4, xfs, btrfs).
	MaxFilenameLen = 255
	// filenameBudget keeps one byte of slack below MaxFilenameLen.
	filenameBudget = MaxFilenameLen - 1

	fingerprintLen = 8
	minKeep        = 16
)

// hostileChars are removed outright from derived filenames, along with
// path separators and NUL.
const hostileChars = "[]<>:\"|?*/\\\x00"

// TargetFilename returns the deterministic filename for name. Names that do
// not fit the length budget are truncated and suffixed with the first eight
// hex digits of the SHA-256 of the full name, so distinct long names sharing
// a prefix still map to distinct files.
func TargetFilename(name domain.Name) string {
	base := string(name)
	if len(base)+len(Extension) > filenameBudget {
		sum := sha256.Sum256([]byte(name))
		fp := hex.EncodeToString(sum[:])[:fingerprintLen]
		// filenameBudget (254, not 255) keeps hashed names within 254 bytes.
		// One byte goes to the '-' separator.
		keep := max(minKeep, filenameBudget-len(Extension)-1-len(fp))
		base = base[:min(keep, len(base))] + "-" + fp
	}
	return secureFilename(base + Extension)
}

// secureFilename drops hostile characters and collapses dot runs until no
// ".." remains. Removal runs first so that it cannot splice a new ".."
// together.
func secureFilename(name string) string {
	// byte-wise, so invalid UTF-8 passes through unchanged instead of
	// growing into U+FFFD
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if strings.IndexByte(hostileChars, name[i]) < 0 {
			b.WriteByte(name[i])
		}
	}
	name = b.String()
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	return name
}
