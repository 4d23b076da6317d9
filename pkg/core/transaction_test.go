package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/envmon/pkg/core/status"
	envmonerrors "github.com/oneconcern/envmon/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// failingFs fails to create files whose name contains some fragment
type failingFs struct {
	afero.Fs
	fragment string
}

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && strings.Contains(name, f.fragment) {
		return nil, errInjected
	}
	return f.Fs.OpenFile(name, flag, perm)
}

// testFs is rooted in a temporary directory of the OS file system
func testFs(t testing.TB) afero.Fs {
	return afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
}

func writeTree(t testing.TB, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
}

func readTree(t testing.TB, fs afero.Fs, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	require.NoError(t, afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		b, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[rel] = string(b)
		return nil
	}))
	return files
}

var (
	liveFiles = map[string]string{
		"manifest.toml": "version = 1\n",
		"manifest.lock": "{}",
	}
	sandboxFiles = map[string]string{
		"manifest.toml":      "version = 1\n[install]\ncurl = { pkg-path = \"curl\" }\n",
		"manifest.lock":      `{"lockfile-version":1}`,
		"assets/script.sh":   "echo hi",
		"assets/nested/x.md": "x",
	}
)

func TestReplaceDir(t *testing.T) {
	fs := testFs(t)
	writeTree(t, fs, "/work/env", liveFiles)
	writeTree(t, fs, "/tmp/sandbox/env", sandboxFiles)

	require.NoError(t, ReplaceDir(fs, "/work/env", "/tmp/sandbox/env"))

	assert.Equal(t, sandboxFiles, readTree(t, fs, "/work/env"))
	exists, err := afero.Exists(fs, BackupPath("/work/env"))
	require.NoError(t, err)
	assert.False(t, exists, "backup must be removed")
}

func TestReplaceDirPriorTransaction(t *testing.T) {
	fs := testFs(t)
	writeTree(t, fs, "/work/env", liveFiles)
	writeTree(t, fs, "/work/env.tmp", liveFiles)
	writeTree(t, fs, "/tmp/sandbox/env", sandboxFiles)

	err := ReplaceDir(fs, "/work/env", "/tmp/sandbox/env")
	require.Error(t, err)
	assert.True(t, envmonerrors.Is(err, status.ErrPriorTransaction))
	assert.Equal(t, liveFiles, readTree(t, fs, "/work/env"))
}

func TestReplaceDirCopyFailure(t *testing.T) {
	fs := failingFs{Fs: testFs(t), fragment: "nested"}
	writeTree(t, fs.Fs, "/work/env", liveFiles)
	writeTree(t, fs.Fs, "/tmp/sandbox/env", sandboxFiles)

	err := ReplaceDir(fs, "/work/env", "/tmp/sandbox/env")
	require.Error(t, err)
	assert.True(t, envmonerrors.Is(err, status.ErrMoveTransaction))
	assert.True(t, errors.Is(err, errInjected))

	assert.Equal(t, liveFiles, readTree(t, fs, "/work/env"), "live directory must be restored")
	exists, err := afero.Exists(fs, BackupPath("/work/env"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCopyDirSymlinks(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()
	src := filepath.Join(root, "src")
	writeTree(t, fs, src, map[string]string{"file": "content"})
	require.NoError(t, os.Symlink("file", filepath.Join(src, "link")))

	dst := filepath.Join(root, "dst")
	require.NoError(t, CopyDir(fs, src, dst))

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "file", target)

	b, err := os.ReadFile(filepath.Join(dst, "file"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))
}

func TestCopyDirNoSymlinkSupport(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.Symlink("nowhere", filepath.Join(src, "link")))

	// a read-only wrapper does not support creating symlinks
	err := CopyDir(afero.NewReadOnlyFs(afero.NewOsFs()), src, filepath.Join(root, "dst"))
	require.Error(t, err)
}
