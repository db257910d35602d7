package overlayfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/backend/memfs"
	"github.com/rclone/vfslib/backend/overlayfs"
	"github.com/rclone/vfslib/errs"
)

func writeFile(t *testing.T, b vfs.Backend, path string, flags vfs.OpenFlag, data []byte) {
	t.Helper()
	fh, err := b.Open(path, flags)
	require.NoError(t, err)
	defer b.Close(fh)
	for len(data) > 0 {
		n, err := b.Write(fh, data)
		require.NoError(t, err)
		data = data[n:]
	}
}

func readAll(t *testing.T, b vfs.Backend, path string) []byte {
	t.Helper()
	fh, err := b.Open(path, vfs.RDONLY)
	require.NoError(t, err)
	defer b.Close(fh)

	var out []byte
	buf := make([]byte, 8)
	for {
		n, err := b.Read(fh, buf)
		out = append(out, buf[:n]...)
		if err != nil {
			require.ErrorIs(t, err, errs.EOF)
			return out
		}
	}
}

func newFixture(t *testing.T) (lower, upper *memfs.Backend, ov *overlayfs.Backend) {
	t.Helper()
	lower = memfs.New(memfs.Options{})
	upper = memfs.New(memfs.Options{})
	ov = overlayfs.New(lower, upper)
	t.Cleanup(ov.Destroy)
	return
}

func TestUpperWinsOverLower(t *testing.T) {
	lower, upper, ov := newFixture(t)
	writeFile(t, lower, "/f", vfs.WRONLY|vfs.CREATE, []byte("lower"))
	writeFile(t, upper, "/f", vfs.WRONLY|vfs.CREATE, []byte("upper"))

	assert.Equal(t, "upper", string(readAll(t, ov, "/f")))
}

func TestReadFallsThroughToLower(t *testing.T) {
	lower, _, ov := newFixture(t)
	writeFile(t, lower, "/f", vfs.WRONLY|vfs.CREATE, []byte("from lower"))

	assert.Equal(t, "from lower", string(readAll(t, ov, "/f")))
}

func TestWriteToLowerOnlyFileCopiesUp(t *testing.T) {
	lower, upper, ov := newFixture(t)
	writeFile(t, lower, "/f", vfs.WRONLY|vfs.CREATE, []byte("original"))

	fh, err := ov.Open("/f", vfs.WRONLY)
	require.NoError(t, err)
	_, err = ov.Write(fh, []byte("X"))
	require.NoError(t, err)
	require.NoError(t, ov.Close(fh))

	// lower must be untouched; upper must now hold the modified copy.
	assert.Equal(t, "original", string(readAll(t, lower, "/f")))
	got := readAll(t, upper, "/f")
	assert.Equal(t, "Xriginal", string(got))
	assert.Equal(t, "Xriginal", string(readAll(t, ov, "/f")))
}

func TestUnlinkLowerOnlyFileMasksWithWhiteout(t *testing.T) {
	lower, upper, ov := newFixture(t)
	writeFile(t, lower, "/f", vfs.WRONLY|vfs.CREATE, []byte("x"))

	require.NoError(t, ov.Unlink("/f"))

	_, err := ov.Stat("/f")
	assert.ErrorIs(t, err, errs.ErrNoEnt)

	// The lower copy must still physically exist...
	_, err = lower.Stat("/f")
	assert.NoError(t, err)
	// ...masked by a whiteout in upper.
	_, err = upper.Stat("/f.whiteout")
	assert.NoError(t, err)
}

func TestRemovingWhiteoutByRecreatingFileWorks(t *testing.T) {
	lower, _, ov := newFixture(t)
	writeFile(t, lower, "/f", vfs.WRONLY|vfs.CREATE, []byte("x"))
	require.NoError(t, ov.Unlink("/f"))

	writeFile(t, ov, "/f", vfs.WRONLY|vfs.CREATE, []byte("reborn"))
	assert.Equal(t, "reborn", string(readAll(t, ov, "/f")))
}

func TestListingMergesAndMasksWhiteouts(t *testing.T) {
	lower, upper, ov := newFixture(t)
	writeFile(t, lower, "/a", vfs.WRONLY|vfs.CREATE, []byte("a"))
	writeFile(t, lower, "/b", vfs.WRONLY|vfs.CREATE, []byte("b"))
	writeFile(t, upper, "/c", vfs.WRONLY|vfs.CREATE, []byte("c"))
	require.NoError(t, ov.Unlink("/b"))

	var names []string
	require.NoError(t, ov.Ls("/", func(name string, st vfs.Stat) bool {
		names = append(names, name)
		return true
	}))
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestRmdirOfLowerOnlyDirectoryWritesWhiteoutDir(t *testing.T) {
	lower, upper, ov := newFixture(t)
	require.NoError(t, lower.Mkdir("/d"))

	require.NoError(t, ov.Rmdir("/d"))

	_, err := ov.Stat("/d")
	assert.ErrorIs(t, err, errs.ErrNoEnt)
	st, err := upper.Stat("/d.whiteout")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsDir())
}

func TestRmdirNonEmptyFails(t *testing.T) {
	lower, _, ov := newFixture(t)
	require.NoError(t, lower.Mkdir("/d"))
	writeFile(t, lower, "/d/f", vfs.WRONLY|vfs.CREATE, []byte("x"))

	assert.ErrorIs(t, ov.Rmdir("/d"), errs.ErrNotEmpty)
}

func TestMkdirAfterWhiteoutRecreates(t *testing.T) {
	lower, _, ov := newFixture(t)
	require.NoError(t, lower.Mkdir("/d"))
	require.NoError(t, ov.Rmdir("/d"))

	require.NoError(t, ov.Mkdir("/d"))
	st, err := ov.Stat("/d")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsDir())
}
