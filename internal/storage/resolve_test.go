package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"leitstand/pkg/domain"
	dErrors "leitstand/pkg/domain-errors"
)

type ResolveSuite struct {
	suite.Suite
	base string
}

func TestResolveSuite(t *testing.T) {
	suite.Run(t, new(ResolveSuite))
}

func (s *ResolveSuite) SetupTest() {
	dir, err := filepath.EvalSymlinks(s.T().TempDir())
	s.Require().NoError(err)
	s.base = dir
}

func (s *ResolveSuite) requireDomainError(err error) {
	s.T().Helper()
	s.Require().Error(err)
	var de *domain.DomainError
	s.Require().True(errors.As(err, &de), "expected *domain.DomainError, got %T: %v", err, err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidDomain))
}

func (s *ResolveSuite) TestResolvesUnderBase() {
	got, err := SafeTargetPath("Example.COM", s.base)
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.base, "example.com.jsonl"), got)
	s.True(filepath.IsAbs(got))
	s.Equal(s.base, filepath.Dir(got))
}

func (s *ResolveSuite) TestRejectsTraversal() {
	for _, raw := range []string{
		"../../etc/passwd",
		`..\..\etc\passwd`,
		"/etc/passwd",
		"..",
		".",
		"example.com/../../x",
		"example.com\x00.evil",
		"",
	} {
		s.Run(raw, func() {
			got, err := SafeTargetPath(raw, s.base)
			s.requireDomainError(err)
			s.Empty(got)
		})
	}
}

func (s *ResolveSuite) TestBaseMustExist() {
	missing := filepath.Join(s.base, "missing")

	_, err := SafeTargetPath("example.com", missing)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(errors.Is(err, domain.ErrInvalidDomain))

	_, statErr := os.Stat(missing)
	s.True(os.IsNotExist(statErr), "resolution must not create the base directory")
}

func (s *ResolveSuite) TestBaseMustBeDirectory() {
	file := filepath.Join(s.base, "plain")
	s.Require().NoError(os.WriteFile(file, nil, 0o600))

	_, err := SafeTargetPath("example.com", file)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ResolveSuite) TestBaseThroughSymlinkIsCanonicalized() {
	real := filepath.Join(s.base, "real")
	s.Require().NoError(os.Mkdir(real, 0o755))
	link := filepath.Join(s.base, "link")
	s.Require().NoError(os.Symlink(real, link))

	got, err := SafeTargetPath("example.com", link)
	s.Require().NoError(err)
	s.Equal(filepath.Join(real, "example.com.jsonl"), got)
}

func (s *ResolveSuite) TestRelativeBase() {
	wd, err := os.Getwd()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = os.Chdir(wd) })
	s.Require().NoError(os.Chdir(s.base))
	s.Require().NoError(os.Mkdir("data", 0o755))

	got, err := SafeTargetPath("example.com", "data")
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.base, "data", "example.com.jsonl"), got)
}

func (s *ResolveSuite) TestExistingRegularFileIsAccepted() {
	target := filepath.Join(s.base, "example.com.jsonl")
	s.Require().NoError(os.WriteFile(target, []byte("{}\n"), 0o600))

	got, err := SafeTargetPath("example.com", s.base)
	s.Require().NoError(err)
	s.Equal(target, got)
}

func (s *ResolveSuite) TestSymlinkedTargetIsRejected() {
	outside := s.T().TempDir()
	victim := filepath.Join(outside, "victim")
	s.Require().NoError(os.WriteFile(victim, nil, 0o600))
	s.Require().NoError(os.Symlink(victim, filepath.Join(s.base, "example.com.jsonl")))

	_, err := SafeTargetPath("example.com", s.base)
	s.requireDomainError(err)
}

func (s *ResolveSuite) TestDanglingSymlinkIsRejected() {
	s.Require().NoError(os.Symlink("/nonexistent/victim", filepath.Join(s.base, "example.com.jsonl")))

	_, err := SafeTargetPath("example.com", s.base)
	s.requireDomainError(err)
}

func (s *ResolveSuite) TestSymlinkInsideBaseIsRejected() {
	s.Require().NoError(os.WriteFile(filepath.Join(s.base, "other.jsonl"), nil, 0o600))
	s.Require().NoError(os.Symlink("other.jsonl", filepath.Join(s.base, "example.com.jsonl")))

	_, err := SafeTargetPath("example.com", s.base)
	s.requireDomainError(err)
}

func (s *ResolveSuite) TestMaximalDomain() {
	raw := strings.Repeat("a", 63) + "." + strings.Repeat("b", 63) + "." +
		strings.Repeat("c", 63) + "." + strings.Repeat("d", 61)

	got, err := SafeTargetPath(raw, s.base)
	s.Require().NoError(err)
	s.Equal(s.base, filepath.Dir(got))
	s.LessOrEqual(len(filepath.Base(got)), 254)
}

func (s *ResolveSuite) TestResolveName() {
	got, err := ResolveName(domain.MustParseName("example.org"), s.base)
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.base, "example.org.jsonl"), got)

	_, err = ResolveName("", s.base)
	s.requireDomainError(err)
}

func (s *ResolveSuite) TestConcurrentResolution() {
	const workers = 32
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Go(func() {
			got, err := SafeTargetPath("Concurrent.Example.com", s.base)
			if err == nil {
				results[i] = got
			}
		})
	}
	wg.Wait()

	want := filepath.Join(s.base, "concurrent.example.com.jsonl")
	for _, got := range results {
		s.Equal(want, got)
	}
}

func TestOpenBaseDir(t *testing.T) {
	t.Run("creates missing parents", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		dir := filepath.Join(root, "a", "b", "data")

		base, err := OpenBaseDir(dir)
		require.NoError(t, err)
		require.Equal(t, dir, base.Path())
		require.False(t, base.IsZero())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())

		got, err := base.SafeTargetPath("example.com")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "example.com.jsonl"), got)
	})

	t.Run("existing directory is reused", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)

		base, err := OpenBaseDir(root)
		require.NoError(t, err)
		require.Equal(t, root, base.Path())
	})

	t.Run("fails on a regular file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))

		_, err := OpenBaseDir(file)
		require.Error(t, err)
	})

	t.Run("fails on empty path", func(t *testing.T) {
		_, err := OpenBaseDir("")
		require.Error(t, err)
	})
}

func TestIsStrictlyUnder(t *testing.T) {
	root := filepath.FromSlash("/srv/data")
	tests := []struct {
		path string
		want bool
	}{
		{"/srv/data/example.com.jsonl", true},
		{"/srv/data/sub/x", true},
		{"/srv/data", false},
		{"/srv/data-other/x", false},
		{"/srv", false},
		{"/etc/passwd", false},
		{"/srv/data/..hidden", true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, isStrictlyUnder(filepath.FromSlash(tt.path), root), tt.path)
	}
}
