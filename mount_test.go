package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib/errs"
)

// stubBackend is a minimal Backend double for exercising the mount
// registry and visitor without depending on any real backend package
// (which would import this one right back).
type stubBackend struct {
	UnimplementedBackend
	destroyed bool
}

func (s *stubBackend) Destroy() { s.destroyed = true }

func (s *stubBackend) Stat(path string) (Stat, error) {
	return Stat{Mode: ModeReg}, nil
}

func TestMountTableLongestPrefixMatch(t *testing.T) {
	tbl := newMountTable()
	a := &stubBackend{}
	ab := &stubBackend{}
	require.NoError(t, tbl.mount("/a", a))
	require.NoError(t, tbl.mount("/a/b", ab))

	rec, residual, err := tbl.lookup("/a/b/c")
	require.NoError(t, err)
	assert.Same(t, ab, rec.backend)
	assert.Equal(t, "/c", residual)
	rec.release()

	rec, residual, err = tbl.lookup("/a/x")
	require.NoError(t, err)
	assert.Same(t, a, rec.backend)
	assert.Equal(t, "/x", residual)
	rec.release()
}

func TestMountTableNoMatch(t *testing.T) {
	tbl := newMountTable()
	require.NoError(t, tbl.mount("/a", &stubBackend{}))

	_, _, err := tbl.lookup("/b")
	assert.ErrorIs(t, err, errs.ErrNoEnt)
}

func TestMountDuplicatePrefix(t *testing.T) {
	tbl := newMountTable()
	require.NoError(t, tbl.mount("/a", &stubBackend{}))
	assert.ErrorIs(t, tbl.mount("/a", &stubBackend{}), errs.ErrAlready)
}

func TestMountRejectsRelativePrefix(t *testing.T) {
	tbl := newMountTable()
	assert.ErrorIs(t, tbl.mount("a", &stubBackend{}), errs.ErrInval)
}

func TestUnmountReleasesBackend(t *testing.T) {
	tbl := newMountTable()
	be := &stubBackend{}
	require.NoError(t, tbl.mount("/a", be))
	require.NoError(t, tbl.unmount("/a"))
	assert.True(t, be.destroyed)

	_, _, err := tbl.lookup("/a")
	assert.ErrorIs(t, err, errs.ErrNoEnt)
}

func TestUnmountUnknownPrefix(t *testing.T) {
	tbl := newMountTable()
	assert.ErrorIs(t, tbl.unmount("/nope"), errs.ErrNoEnt)
}

func TestMountSurvivesUnmountWhileReferenced(t *testing.T) {
	tbl := newMountTable()
	be := &stubBackend{}
	require.NoError(t, tbl.mount("/a", be))

	rec, _, err := tbl.lookup("/a/x")
	require.NoError(t, err)

	require.NoError(t, tbl.unmount("/a"))
	assert.False(t, be.destroyed, "backend must survive while a lookup still holds it")

	rec.release()
	assert.True(t, be.destroyed)
}
