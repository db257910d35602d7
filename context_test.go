package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextMountUnmountVisitor(t *testing.T) {
	c := New()
	defer c.Shutdown()

	be := &stubBackend{}
	require.NoError(t, c.Mount("/a", be))

	st, err := c.Visitor().Stat("/a")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsRegular())

	require.NoError(t, c.Unmount("/a"))
	assert.True(t, be.destroyed)
}

func TestGlobalInitRejectsDoubleInit(t *testing.T) {
	require.NoError(t, Init())
	defer Shutdown()

	assert.Error(t, Init())
}

func TestGlobalMountWithoutInit(t *testing.T) {
	assert.Error(t, Mount("/a", &stubBackend{}))
}
