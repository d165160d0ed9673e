package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	"leitstand/pkg/platform/sentinel"
)

type AppenderSuite struct {
	suite.Suite
	dir      string
	appender *Appender
	ctx      context.Context
}

func TestAppenderSuite(t *testing.T) {
	suite.Run(t, new(AppenderSuite))
}

func (s *AppenderSuite) SetupTest() {
	dir, err := filepath.EvalSymlinks(s.T().TempDir())
	s.Require().NoError(err)
	s.dir = dir
	s.appender = NewAppender(dir, WithLockTimeout(200*time.Millisecond))
	s.ctx = context.Background()
}

func (s *AppenderSuite) readLines(name string) []string {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	s.Require().NoError(err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func (s *AppenderSuite) TestAppendCreatesFileWithPrivateMode() {
	err := s.appender.Append(s.ctx, "example.com.jsonl", [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)})
	s.Require().NoError(err)

	s.Equal([]string{`{"a":1}`, `{"b":2}`}, s.readLines("example.com.jsonl"))

	info, err := os.Stat(filepath.Join(s.dir, "example.com.jsonl"))
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())
	s.FileExists(filepath.Join(s.dir, "example.com.jsonl.lock"))
}

func (s *AppenderSuite) TestAppendAppends() {
	s.Require().NoError(s.appender.Append(s.ctx, "a.jsonl", [][]byte{[]byte(`1`)}))
	s.Require().NoError(s.appender.Append(s.ctx, "a.jsonl", [][]byte{[]byte(`2`)}))
	s.Equal([]string{"1", "2"}, s.readLines("a.jsonl"))
}

func (s *AppenderSuite) TestEmptyLinesIsNoop() {
	s.Require().NoError(s.appender.Append(s.ctx, "empty.jsonl", nil))
	s.NoFileExists(filepath.Join(s.dir, "empty.jsonl"))
}

func (s *AppenderSuite) TestRejectsBadFilenames() {
	for _, name := range []string{"", ".", "..", "a/b.jsonl", "../x.jsonl", "nul\x00.jsonl", "x.jsonl.lock", strings.Repeat("a", 256)} {
		s.Run(fmt.Sprintf("%q", name), func() {
			err := s.appender.Append(s.ctx, name, [][]byte{[]byte(`{}`)})
			s.Error(err)
		})
	}
}

func (s *AppenderSuite) TestRejectsEmbeddedNewline() {
	err := s.appender.Append(s.ctx, "nl.jsonl", [][]byte{[]byte("{}\n{}")})
	s.Error(err)
	s.NoFileExists(filepath.Join(s.dir, "nl.jsonl"))
}

func (s *AppenderSuite) TestDoesNotFollowSymlink() {
	outside := filepath.Join(s.T().TempDir(), "victim")
	s.Require().NoError(os.WriteFile(outside, []byte("keep\n"), 0o600))
	s.Require().NoError(os.Symlink(outside, filepath.Join(s.dir, "evil.jsonl")))

	err := s.appender.Append(s.ctx, "evil.jsonl", [][]byte{[]byte(`{}`)})
	s.Require().Error(err)
	s.True(errors.Is(err, unix.ELOOP))

	data, err := os.ReadFile(outside)
	s.Require().NoError(err)
	s.Equal("keep\n", string(data))
}

func (s *AppenderSuite) holdLock(name string) func() {
	fd, err := unix.Open(filepath.Join(s.dir, lockName(name)), unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o600)
	s.Require().NoError(err)
	s.Require().NoError(unix.Flock(fd, unix.LOCK_EX))
	return func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
		_ = unix.Close(fd)
	}
}

func (s *AppenderSuite) TestLockTimeout() {
	release := s.holdLock("busy.jsonl")
	defer release()

	start := time.Now()
	err := s.appender.Append(s.ctx, "busy.jsonl", [][]byte{[]byte(`{}`)})
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.GreaterOrEqual(time.Since(start), 200*time.Millisecond)
	s.NoFileExists(filepath.Join(s.dir, "busy.jsonl"))
}

func (s *AppenderSuite) TestLockContextCancelled() {
	release := s.holdLock("cancel.jsonl")
	defer release()

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := NewAppender(s.dir).Append(ctx, "cancel.jsonl", [][]byte{[]byte(`{}`)})
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.ErrorIs(err, context.Canceled)
}

func (s *AppenderSuite) TestWaitsForLockRelease() {
	release := s.holdLock("wait.jsonl")
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	err := NewAppender(s.dir, WithLockTimeout(2*time.Second)).Append(s.ctx, "wait.jsonl", [][]byte{[]byte(`{}`)})
	s.Require().NoError(err)
	s.Equal([]string{`{}`}, s.readLines("wait.jsonl"))
}

func (s *AppenderSuite) TestConcurrentAppendsKeepLinesIntact() {
	const writers = 16
	const perWriter = 25
	line := []byte(`{"payload":"` + strings.Repeat("x", 4096) + `"}`)
	appender := NewAppender(s.dir, WithLockTimeout(10*time.Second))

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for range writers {
		wg.Go(func() {
			for range perWriter {
				errs <- appender.Append(s.ctx, "concurrent.jsonl", [][]byte{line})
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	f, err := os.Open(filepath.Join(s.dir, "concurrent.jsonl"))
	s.Require().NoError(err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 8192), 1<<20)
	n := 0
	for sc.Scan() {
		s.Equal(string(line), sc.Text())
		n++
	}
	s.Require().NoError(sc.Err())
	s.Equal(writers*perWriter, n)
}

func (s *AppenderSuite) TestLongFilenameUsesShortLockName() {
	name := strings.Repeat("a", 239) + "-0123abcd.jsonl"
	s.Require().Len(name, 254)
	s.Require().NoError(s.appender.Append(s.ctx, name, [][]byte{[]byte(`{}`)}))
	s.FileExists(filepath.Join(s.dir, lockName(name)))
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "example.com.jsonl.lock", lockName("example.com.jsonl"))

	long := strings.Repeat("b", 254)
	got := lockName(long)
	assert.LessOrEqual(t, len(got), maxNameLen)
	assert.True(t, strings.HasSuffix(got, lockSuffix))
	assert.NotEqual(t, got, lockName(strings.Repeat("b", 253)+"c"))

	edge := strings.Repeat("c", maxNameLen-len(lockSuffix))
	assert.Equal(t, edge+lockSuffix, lockName(edge))
}

func TestJoinLines(t *testing.T) {
	got, err := joinLines([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(got))
}
