package memfs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rclone/vfslib"
)

// timeNow is time.Now; a separate symbol only so test files in this
// package can read it without importing "time" twice.
var timeNow = time.Now

type nodeKind int

const (
	kindDir nodeKind = iota
	kindReg
)

// Node is one entry in the in-memory tree: either a directory holding an
// unordered sequence of children, or a regular file holding a byte
// buffer. Every reference to a Node — the parent's child slot, an open
// session, an in-flight callback — holds one count in refs; the node is
// only freed once the count reaches zero, per spec §3's ownership
// invariant. The parent pointer is a weak back-reference used only to
// unlink a node from its parent on removal, never for ownership, which
// is what keeps the parent/child link from becoming a reference cycle
// (see the reference design's note on refcount cycles).
type Node struct {
	kind nodeKind
	refs atomic.Int64

	mu     sync.RWMutex // guards everything below except refs
	name   string
	stat   vfs.Stat
	parent *Node

	children []*Node // directory payload; unordered

	data []byte // regular-file payload
}

func newNode(kind nodeKind, name string, parent *Node) *Node {
	n := &Node{kind: kind, name: name, parent: parent}
	mode := vfs.ModeReg
	if kind == kindDir {
		mode = vfs.ModeDir
	}
	n.stat = vfs.Stat{Mode: mode, ModTime: time.Now()}
	return n
}

// acquire takes one reference and returns n, for chaining at allocation
// sites.
func (n *Node) acquire() *Node {
	n.refs.Add(1)
	return n
}

// release drops one reference. At zero the node is already unlinked from
// its parent (removal always happens before the matching release); a
// directory recursively releases whatever children remain, which per
// the invariant have no outstanding sessions of their own.
func (n *Node) release() {
	if n.refs.Add(-1) != 0 {
		return
	}
	if n.kind == kindDir {
		for _, child := range n.children {
			child.release()
		}
	}
	n.data = nil
}

// findChildLocked returns the child named name, or nil. Caller must hold
// at least a read lock on n.
func (n *Node) findChildLocked(name string) *Node {
	for _, ch := range n.children {
		if ch.name == name {
			return ch
		}
	}
	return nil
}

// removeChildLocked removes the child named name from n's children,
// shifting the trailing elements left by one so the sequence never
// contains a gap (the reference implementation's remove_child_at does
// this via a memmove; a zero-length one when the removed element was
// last, which is correct by accident rather than by design — this
// shifts unconditionally instead). Returns the removed child, or nil if
// not found. Caller must hold the write lock on n.
func (n *Node) removeChildLocked(name string) *Node {
	for i, ch := range n.children {
		if ch.name == name {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return ch
		}
	}
	return nil
}
