//go:build !windows

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemClassifiesErrors(t *testing.T) {
	var fsys OSFileSystem
	_, err := fsys.Lstat(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fsys.Remove(filepath.Join(t.TempDir(), "missing")), ErrNotFound)
}

func TestOSFileSystemClearAttributes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "ro.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o400))

	var fsys OSFileSystem
	require.NoError(t, fsys.ClearAttributes(p))
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o200)
	require.NoError(t, fsys.Remove(p))
}

func TestOSFileSystemIsLink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	var fsys OSFileSystem
	assert.True(t, fsys.IsLink(link, nil))
	assert.False(t, fsys.IsLink(target, nil))

	info, err := fsys.Lstat(link)
	require.NoError(t, err)
	assert.True(t, fsys.IsLink(link, info))
}

func TestUnsupportedCapabilities(t *testing.T) {
	sys := Native()
	assert.ErrorIs(t, sys.FS.ScheduleDelete("/tmp/x"), ErrUnsupported)
	_, err := sys.Config.SubKeys(LocalMachine, "SOFTWARE")
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = sys.Tasks.List(t.Context())
	assert.ErrorIs(t, err, ErrUnsupported)
}
