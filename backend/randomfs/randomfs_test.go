package randomfs_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/backend/randomfs"
	"github.com/rclone/vfslib/errs"
)

func TestReadReturnsRandomBytes(t *testing.T) {
	b := randomfs.New()
	defer b.Destroy()

	fh, err := b.Open("/random", vfs.RDONLY)
	require.NoError(t, err)
	defer b.Close(fh)

	a := make([]byte, 256)
	_, err = b.Read(fh, a)
	require.NoError(t, err)
	bb := make([]byte, 256)
	_, err = b.Read(fh, bb)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, bb), "two successive reads should not produce identical output")
}

func TestWriteDiscardsButReportsFullLength(t *testing.T) {
	b := randomfs.New()
	defer b.Destroy()

	fh, err := b.Open("/random", vfs.WRONLY)
	require.NoError(t, err)
	defer b.Close(fh)

	n, err := b.Write(fh, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestSeekIsIllegal(t *testing.T) {
	b := randomfs.New()
	defer b.Destroy()

	fh, err := b.Open("/random", vfs.RDONLY)
	require.NoError(t, err)
	defer b.Close(fh)

	_, err = b.Seek(fh, 0, vfs.SeekSet)
	assert.ErrorIs(t, err, errs.ErrSPipe)
}

func TestTruncateIsInvalid(t *testing.T) {
	b := randomfs.New()
	defer b.Destroy()

	fh, err := b.Open("/random", vfs.WRONLY)
	require.NoError(t, err)
	defer b.Close(fh)

	assert.ErrorIs(t, b.Truncate(fh, 10), errs.ErrInval)
}

func TestOnlyOneFileExists(t *testing.T) {
	b := randomfs.New()
	defer b.Destroy()

	st, err := b.Stat("/random")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsRegular())

	var names []string
	require.NoError(t, b.Ls("/", func(name string, st vfs.Stat) bool {
		names = append(names, name)
		return true
	}))
	assert.Equal(t, []string{"random"}, names)

	_, err = b.Open("/other", vfs.RDONLY)
	assert.ErrorIs(t, err, errs.ErrNoEnt)
}
