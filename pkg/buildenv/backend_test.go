package buildenv

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend writes a shell script standing for the backend
func fakeBackend(t testing.TB, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a posix shell")
	}
	bin := filepath.Join(t.TempDir(), "backend")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o700))
	return bin
}

func TestSubprocessLock(t *testing.T) {
	bin := fakeBackend(t, `echo "{\"lockfile-version\":1,\"args\":\"$*\"}"`)
	global := filepath.Join(t.TempDir(), "global.toml")
	require.NoError(t, os.WriteFile(global, []byte("version = 1\n"), 0o600))

	b := New(bin)
	out, err := b.Lock(context.Background(), "/env/manifest.toml", "/env/manifest.lock", global)
	require.NoError(t, err)
	assert.Contains(t, string(out), "manifest lock --global-manifest "+global+" --lockfile /env/manifest.lock /env/manifest.toml")

	out, err = b.Lock(context.Background(), "/env/manifest.toml", "", "/does/not/exist")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"args":"manifest lock /env/manifest.toml"`)
}

func TestSubprocessBuild(t *testing.T) {
	bin := fakeBackend(t, `echo '{"store_path":"/nix/store/abc-environment"}'`)

	path, err := New(bin, WithSystem("x86_64-linux")).Build(context.Background(), "/env/manifest.lock", "/run/link")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/abc-environment", path)
}

func TestSubprocessErrors(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		bin := fakeBackend(t, `echo "some progress" >&2
echo '{"exit_code":105,"category_message":"resolution failed","context_message":"package curl not found"}' >&2
exit 105`)

		_, err := New(bin).Lock(context.Background(), "/env/manifest.toml", "", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLock))

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, 105, cmdErr.ExitCode)
		assert.Equal(t, "resolution failed: package curl not found", cmdErr.Message)
		assert.Contains(t, err.Error(), "package curl not found")
	})

	t.Run("plain error", func(t *testing.T) {
		bin := fakeBackend(t, `echo "boom" >&2
exit 3`)

		_, err := New(bin).Build(context.Background(), "/env/manifest.lock", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBuild))
		assert.Contains(t, err.Error(), "exit status 3: boom")
	})

	t.Run("bad output", func(t *testing.T) {
		bin := fakeBackend(t, `echo "not json"`)

		_, err := New(bin).Build(context.Background(), "/env/manifest.lock", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBadOutput))
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "nope")).Build(context.Background(), "/env/manifest.lock", "")
		require.Error(t, err)

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, -1, cmdErr.ExitCode)
	})
}
