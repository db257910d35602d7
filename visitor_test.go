package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/vfslib/errs"
)

// memBackend is a tiny single-file Backend double: enough state to
// exercise Visitor's handle table and routing without a real backend.
type memBackend struct {
	UnimplementedBackend
	data    []byte
	isDir   map[string]bool
	opens   int
	closes  int
	mkdirs  []string
	rmdirs  []string
	unlinks []string
}

func (m *memBackend) Stat(path string) (Stat, error) {
	if m.isDir[path] {
		return Stat{Mode: ModeDir}, nil
	}
	return Stat{Mode: ModeReg, Size: uint64(len(m.data))}, nil
}

func (m *memBackend) Open(path string, flags OpenFlag) (Handle, error) {
	m.opens++
	return "handle-" + path, nil
}

func (m *memBackend) Close(fh Handle) error {
	m.closes++
	return nil
}

func (m *memBackend) Read(fh Handle, buf []byte) (int, error) {
	n := copy(buf, m.data)
	return n, nil
}

func (m *memBackend) Mkdir(path string) error {
	m.mkdirs = append(m.mkdirs, path)
	return nil
}

func (m *memBackend) Rmdir(path string) error {
	m.rmdirs = append(m.rmdirs, path)
	return nil
}

func (m *memBackend) Unlink(path string) error {
	m.unlinks = append(m.unlinks, path)
	return nil
}

func newTestVisitor(t *testing.T, be Backend) (*Visitor, *mountTable) {
	t.Helper()
	tbl := newMountTable()
	require.NoError(t, tbl.mount("/m", be))
	return newVisitor(tbl), tbl
}

func TestVisitorOpenReadClose(t *testing.T) {
	be := &memBackend{data: []byte("hello")}
	v, _ := newTestVisitor(t, be)

	fh, err := v.Open("/m/file", RDONLY)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := v.Read(fh, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, v.Close(fh))
	assert.Equal(t, 1, be.closes)

	_, err = v.Read(fh, buf)
	assert.ErrorIs(t, err, errs.ErrBadF, "handle must not be usable after Close")
}

func TestVisitorRmDispatchesByType(t *testing.T) {
	be := &memBackend{isDir: map[string]bool{"/dir": true}}
	v, _ := newTestVisitor(t, be)

	require.NoError(t, v.Rm("/m/dir"))
	assert.Equal(t, []string{"/dir"}, be.rmdirs)

	require.NoError(t, v.Rm("/m/file"))
	assert.Equal(t, []string{"/file"}, be.unlinks)
}

func TestVisitorUnknownHandleRejected(t *testing.T) {
	be := &memBackend{}
	v, _ := newTestVisitor(t, be)

	_, err := v.Read("not-a-handle", make([]byte, 1))
	assert.ErrorIs(t, err, errs.ErrBadF)
}

func TestVisitorDestroyClosesOutstandingSessions(t *testing.T) {
	be := &memBackend{data: []byte("x")}
	v, _ := newTestVisitor(t, be)

	_, err := v.Open("/m/a", RDONLY)
	require.NoError(t, err)
	_, err = v.Open("/m/b", RDONLY)
	require.NoError(t, err)

	v.Destroy()
	assert.Equal(t, 2, be.closes)
}
