package nullfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/backend/nullfs"
)

func TestReadAlwaysReturnsZerosNeverEOF(t *testing.T) {
	b := nullfs.New()
	defer b.Destroy()

	fh, err := b.Open("/zero", vfs.RDONLY|vfs.CREATE)
	require.NoError(t, err)
	defer b.Close(fh)

	buf := make([]byte, 37)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err := b.Read(fh, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	for _, c := range buf {
		assert.Equal(t, byte(0), c)
	}

	// A second read must succeed identically: unlike MemFS's default
	// hook, nullfs never reaches end of file.
	n, err = b.Read(fh, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}

func TestWriteDiscardsAndReportsFullLength(t *testing.T) {
	b := nullfs.New()
	defer b.Destroy()

	fh, err := b.Open("/null", vfs.WRONLY|vfs.CREATE)
	require.NoError(t, err)
	defer b.Close(fh)

	n, err := b.Write(fh, []byte("anything at all"))
	require.NoError(t, err)
	assert.Equal(t, len("anything at all"), n)

	st, err := b.Stat("/null")
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.Size, "discarded writes must not grow the file")
}
