// Package store appends JSONL records to per-domain files under the data
// directory. Every file operation goes through a directory descriptor of
// the base directory with O_NOFOLLOW, so a symlink planted after path
// resolution is never followed.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"leitstand/pkg/platform/sentinel"
)

const (
	lockSuffix  = ".lock"
	maxNameLen  = 255
	pollEvery   = 25 * time.Millisecond
	fileMode    = 0o600
	openFlags   = unix.O_WRONLY | unix.O_CREAT | unix.O_APPEND | unix.O_CLOEXEC | unix.O_NOFOLLOW
	lockFlags   = unix.O_RDWR | unix.O_CREAT | unix.O_CLOEXEC | unix.O_NOFOLLOW
	dirFlags    = unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC
	defaultWait = 30 * time.Second
)

// Appender writes lines to files in one base directory, serialized per file
// by an advisory flock on a sibling lock file.
type Appender struct {
	dir         string
	lockTimeout time.Duration
}

// Option configures an Appender.
type Option func(*Appender)

// WithLockTimeout bounds how long Append waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(a *Appender) {
		if d > 0 {
			a.lockTimeout = d
		}
	}
}

// NewAppender appends into dir, which must already be canonical (see
// storage.OpenBaseDir).
func NewAppender(dir string, opts ...Option) *Appender {
	a := &Appender{dir: dir, lockTimeout: defaultWait}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the base directory.
func (a *Appender) Dir() string { return a.dir }

// Append writes each line followed by '\n' with one Write call on an
// O_APPEND descriptor. Lines must not contain newlines.
//
// Errors: sentinel.ErrUnavailable when the lock is not acquired in time,
// sentinel.ErrInsufficientStorage on ENOSPC/EDQUOT.
func (a *Appender) Append(ctx context.Context, filename string, lines [][]byte) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	payload, err := joinLines(lines)
	if err != nil {
		return err
	}

	dirfd, err := unix.Open(a.dir, dirFlags, 0)
	if err != nil {
		return fmt.Errorf("open data dir %s: %w", a.dir, err)
	}
	defer unix.Close(dirfd)

	unlock, err := a.lock(ctx, dirfd, lockName(filename))
	if err != nil {
		return err
	}
	defer unlock()

	fd, err := unix.Openat(dirfd, filename, openFlags, fileMode)
	if err != nil {
		return classify(fmt.Errorf("open %s: %w", filename, err), err)
	}
	f := os.NewFile(uintptr(fd), filename)
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return classify(fmt.Errorf("write %s: %w", filename, err), err)
	}
	return nil
}

// lock takes an exclusive flock on name, polling LOCK_NB so ctx and the
// timeout are honored.
func (a *Appender) lock(ctx context.Context, dirfd int, name string) (func(), error) {
	fd, err := unix.Openat(dirfd, name, lockFlags, fileMode)
	if err != nil {
		return nil, classify(fmt.Errorf("open lock %s: %w", name, err), err)
	}

	deadline := time.NewTimer(a.lockTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(fd, unix.LOCK_UN)
				_ = unix.Close(fd)
			}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("flock %s: %w", name, err)
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			_ = unix.Close(fd)
			return nil, fmt.Errorf("lock %s after %s: %w", name, a.lockTimeout, sentinel.ErrUnavailable)
		case <-ctx.Done():
			_ = unix.Close(fd)
			return nil, fmt.Errorf("lock %s: %w: %w", name, sentinel.ErrUnavailable, ctx.Err())
		}
	}
}

// lockName is filename+".lock" when that fits NAME_MAX. Longer names keep a
// readable prefix and a fingerprint of the full filename.
func lockName(filename string) string {
	if len(filename)+len(lockSuffix) <= maxNameLen {
		return filename + lockSuffix
	}
	sum := sha256.Sum256([]byte(filename))
	return filename[:32] + "-" + hex.EncodeToString(sum[:8]) + lockSuffix
}

func checkFilename(filename string) error {
	switch {
	case filename == "", filename == ".", filename == "..":
		return fmt.Errorf("append: invalid filename %q", filename)
	case len(filename) > maxNameLen:
		return fmt.Errorf("append: filename exceeds %d bytes", maxNameLen)
	case strings.ContainsAny(filename, "/\x00"):
		return fmt.Errorf("append: filename %q contains a separator", filename)
	case strings.HasSuffix(filename, lockSuffix):
		return fmt.Errorf("append: filename %q collides with lock files", filename)
	}
	return nil
}

func joinLines(lines [][]byte) ([]byte, error) {
	size := 0
	for _, l := range lines {
		if bytes.IndexByte(l, '\n') >= 0 {
			return nil, errors.New("append: line contains a newline")
		}
		size += len(l) + 1
	}
	buf := make([]byte, 0, size)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	return buf, nil
}

func classify(wrapped, cause error) error {
	if errors.Is(cause, unix.ENOSPC) || errors.Is(cause, unix.EDQUOT) {
		return fmt.Errorf("%w: %w", sentinel.ErrInsufficientStorage, wrapped)
	}
	return wrapped
}
