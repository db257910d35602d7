// Package nullfs implements a /dev/zero-and-/dev/null-flavored backend
// by reusing every MemFS concern — the tree, locking, session lifecycle,
// path walking — except the byte-buffer read/write semantics, which it
// substitutes via memfs.Hook. This is the one backend spec §9 names
// explicitly as a worked example of the injectable I/O hook design.
package nullfs

import (
	"github.com/rclone/vfslib/backend/memfs"
)

// New creates a nullfs backend: a MemFS tree whose regular files always
// read as an endless stream of zero bytes and discard every write.
func New() *memfs.Backend {
	b := memfs.New(memfs.Options{})
	b.SetHook(hook{})
	return b
}

type hook struct{}

// Read always fills buf with zero bytes and reports a full read. Unlike
// MemFS's default hook it never returns EOF: spec §9 calls this out as
// an intentional, /dev/zero-like deviation from the usual "0 is not EOF
// but the file can still end" contract, preserved rather than treated
// as a latent bug in the source this library is grounded on.
func (hook) Read(_ *memfs.Session, _ *memfs.Node, buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

// Write discards buf and reports every byte as written, /dev/null-style.
func (hook) Write(_ *memfs.Session, _ *memfs.Node, buf []byte) (int, error) {
	return len(buf), nil
}
