package localfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/backend/localfs"
	"github.com/rclone/vfslib/errs"
)

func TestOpenCreateWriteReadRoundTrip(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	fh, err := b.Open("/greeting", vfs.WRONLY|vfs.CREATE)
	require.NoError(t, err)
	n, err := b.Write(fh, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, b.Close(fh))

	fh, err = b.Open("/greeting", vfs.RDONLY)
	require.NoError(t, err)
	defer b.Close(fh)
	buf := make([]byte, 16)
	n, err = b.Read(fh, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
}

func TestStatMissingMapsToNoEnt(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.Stat("/missing")
	assert.ErrorIs(t, err, errs.ErrNoEnt)
}

func TestLsReflectsHostDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	b, err := localfs.New(dir)
	require.NoError(t, err)
	defer b.Destroy()

	seen := map[string]bool{}
	require.NoError(t, b.Ls("/", func(name string, st vfs.Stat) bool {
		seen[name] = st.Mode.IsDir()
		return true
	}))
	assert.Equal(t, map[string]bool{"a": false, "sub": true}, seen)
}

func TestResolveRejectsDotDotEscape(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	_, err = b.Stat("/../../etc/passwd")
	assert.ErrorIs(t, err, errs.ErrAcces)
}

func TestMkdirRmdirUnlink(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	require.NoError(t, b.Mkdir("/d"))
	st, err := b.Stat("/d")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsDir())
	require.NoError(t, b.Rmdir("/d"))

	fh, err := b.Open("/f", vfs.WRONLY|vfs.CREATE)
	require.NoError(t, err)
	require.NoError(t, b.Close(fh))
	require.NoError(t, b.Unlink("/f"))
	_, err = b.Stat("/f")
	assert.ErrorIs(t, err, errs.ErrNoEnt)
}

func TestRmdirRejectsRegularFile(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	fh, err := b.Open("/f", vfs.WRONLY|vfs.CREATE)
	require.NoError(t, err)
	require.NoError(t, b.Close(fh))

	assert.ErrorIs(t, b.Rmdir("/f"), errs.ErrNotDir)
	_, err = b.Stat("/f")
	assert.NoError(t, err, "Rmdir on a file must not remove it")
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	b, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	defer b.Destroy()

	require.NoError(t, b.Mkdir("/d"))

	assert.ErrorIs(t, b.Unlink("/d"), errs.ErrIsDir)
	_, err = b.Stat("/d")
	assert.NoError(t, err, "Unlink on a directory must not remove it")
}
