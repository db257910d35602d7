// Package memfs implements an in-memory hierarchical filesystem backend:
// a reference-counted tree of directory and regular-file nodes, guarded
// node-by-node with read/write locks, with an injectable read/write hook
// so derived backends (see backend/nullfs) can reuse every concern but
// the byte-buffer semantics.
//
// It is grounded on backend/memory/memory.go in the retrieval pack's
// rclone teacher: the registration shape (an Options struct, a
// constructor, a Fs-shaped struct) is the same, generalized here from an
// object-store bucket map to a real directory tree since this spec needs
// real directories, not a flat key space.
package memfs

import (
	"sync"
	"sync/atomic"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
	"github.com/rclone/vfslib/internal/pathutil"
	"github.com/rclone/vfslib/internal/vfslog"
)

var log = vfslog.For("memfs")

// Options configures a Backend. There is nothing to configure today; the
// struct exists, in the teacher's own idiom (backend/memory's Options is
// likewise empty), so a future option has somewhere to land without
// breaking New's signature.
type Options struct{}

// Backend is an in-memory filesystem. The zero value is not usable; use
// New.
type Backend struct {
	vfs.UnimplementedBackend

	opt  Options
	hook Hook
	root *Node

	mu       sync.Mutex
	fhGen    atomic.Uint64
	sessions map[uint64]*Session
}

// New creates an empty in-memory filesystem rooted at "/".
func New(opt Options) *Backend {
	b := &Backend{
		opt:      opt,
		hook:     defaultHook{},
		sessions: make(map[uint64]*Session),
	}
	b.root = newNode(kindDir, "", nil)
	b.root.acquire() // owned by the backend itself, for its whole lifetime
	return b
}

// SetHook substitutes the read/write implementation. It must be called
// before any concurrent use of the backend begins.
func (b *Backend) SetHook(h Hook) {
	b.hook = h
}

// Root exposes the root node for derived backends (nullfs) that need to
// build on the same tree.
func (b *Backend) Root() *Node {
	return b.root
}

// Destroy tears the tree down unconditionally; per the Backend contract
// no concurrent or subsequent call will be made once it runs, so it does
// not need to respect the organic refcount invariant the way release()
// does.
func (b *Backend) Destroy() {
	b.mu.Lock()
	b.sessions = nil
	b.mu.Unlock()
	freeTree(b.root)
}

func freeTree(n *Node) {
	if n.kind == kindDir {
		for _, ch := range n.children {
			freeTree(ch)
		}
	}
	n.children = nil
	n.data = nil
}

// walk resolves a residual path to its target node, acquiring and
// releasing a refcount at each step as spec §4.4 describes. The caller
// owns the returned node's refcount and must release() it.
func (b *Backend) walk(residual string) (*Node, error) {
	cur := b.root.acquire()
	for _, name := range pathutil.Split(residual) {
		cur.mu.RLock()
		if cur.kind != kindDir {
			cur.mu.RUnlock()
			cur.release()
			return nil, errs.ErrNotDir
		}
		next := cur.findChildLocked(name)
		if next != nil {
			next.acquire()
		}
		cur.mu.RUnlock()
		cur.release()
		if next == nil {
			return nil, errs.ErrNoEnt
		}
		cur = next
	}
	return cur, nil
}

// walkParent resolves residual to its parent directory node and
// basename. The caller owns the returned node's refcount.
func (b *Backend) walkParent(residual string) (parent *Node, base string, err error) {
	parentPath, base := pathutil.SplitParent(residual)
	parent, err = b.walk(parentPath)
	return parent, base, err
}

// Ls invokes cb for each immediate child of path, holding a refcount on
// the directory (and its read lock) for the whole iteration so a
// concurrent rmdir cannot free it mid-listing.
func (b *Backend) Ls(path string, cb vfs.ListFunc) error {
	dir, err := b.walk(path)
	if err != nil {
		return err
	}
	defer dir.release()

	dir.mu.RLock()
	defer dir.mu.RUnlock()
	if dir.kind != kindDir {
		return errs.ErrNotDir
	}
	for _, ch := range dir.children {
		ch.mu.RLock()
		st := ch.stat
		name := ch.name
		ch.mu.RUnlock()
		if !cb(name, st) {
			break
		}
	}
	return nil
}

// Stat fills in the mode, size and modtime of path.
func (b *Backend) Stat(path string) (vfs.Stat, error) {
	n, err := b.walk(path)
	if err != nil {
		return vfs.Stat{}, err
	}
	defer n.release()

	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stat, nil
}

// Open resolves path to a regular-file node (optionally creating it) and
// allocates a session.
func (b *Backend) Open(path string, flags vfs.OpenFlag) (vfs.Handle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	parent, base, err := b.walkParent(path)
	if err != nil {
		return nil, err
	}
	defer parent.release()

	parent.mu.Lock()
	if parent.kind != kindDir {
		parent.mu.Unlock()
		return nil, errs.ErrNotDir
	}
	target := parent.findChildLocked(base)
	if target != nil {
		target.acquire()
	} else if flags.Has(vfs.CREATE) {
		target = newNode(kindReg, base, parent)
		target.refs.Store(2) // parent-owns-child + this caller
		parent.children = append(parent.children, target)
	} else {
		parent.mu.Unlock()
		return nil, errs.ErrNoEnt
	}
	parent.mu.Unlock()

	if target.kind != kindReg {
		target.release()
		return nil, errs.ErrIsDir
	}

	sess := &Session{flags: flags, node: target}
	if flags.Has(vfs.APPEND) {
		sess.pos = cursorAppend
	}
	if flags.Has(vfs.TRUNCATE) {
		target.mu.Lock()
		target.data = nil
		target.stat.Size = 0
		target.stat.ModTime = timeNow()
		target.mu.Unlock()
	}

	b.mu.Lock()
	if b.sessions == nil {
		b.mu.Unlock()
		target.release()
		return nil, errs.ErrIO
	}
	fake := b.fhGen.Add(1)
	if _, dup := b.sessions[fake]; dup {
		b.mu.Unlock()
		panic("memfs: duplicate fake handle")
	}
	sess.fake = fake
	b.sessions[fake] = sess
	b.mu.Unlock()

	log.WithField("path", path).Debugf("opened")
	return fake, nil
}

func (b *Backend) lookupSession(fh vfs.Handle) (*Session, error) {
	fake, ok := fh.(uint64)
	if !ok {
		return nil, errs.ErrBadF
	}
	b.mu.Lock()
	sess, ok := b.sessions[fake]
	b.mu.Unlock()
	if !ok {
		return nil, errs.ErrBadF
	}
	return sess, nil
}

// Close releases the session for fh.
func (b *Backend) Close(fh vfs.Handle) error {
	fake, ok := fh.(uint64)
	if !ok {
		return errs.ErrBadF
	}
	b.mu.Lock()
	sess, ok := b.sessions[fake]
	if ok {
		delete(b.sessions, fake)
	}
	b.mu.Unlock()
	if !ok {
		return errs.ErrBadF
	}
	sess.node.release()
	return nil
}

// Read rejects a write-only handle, then delegates to the hook under the
// session's cursor lock and the node's read lock.
func (b *Backend) Read(fh vfs.Handle, buf []byte) (int, error) {
	sess, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}
	if sess.writeOnly() {
		return 0, errs.ErrBadF
	}
	sess.cursor.Lock()
	defer sess.cursor.Unlock()
	return b.hook.Read(sess, sess.node, buf)
}

// Write rejects a read-only handle, then delegates to the hook under the
// session's cursor lock and the node's write lock.
func (b *Backend) Write(fh vfs.Handle, buf []byte) (int, error) {
	sess, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}
	if sess.readOnly() {
		return 0, errs.ErrBadF
	}
	sess.cursor.Lock()
	defer sess.cursor.Unlock()
	return b.hook.Write(sess, sess.node, buf)
}

// Seek implements the three whence modes described in spec §4.4,
// including the "sticky append" SEEK_END(0) special case.
func (b *Backend) Seek(fh vfs.Handle, offset int64, whence vfs.Whence) (int64, error) {
	sess, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}

	sess.cursor.Lock()
	defer sess.cursor.Unlock()

	switch whence {
	case vfs.SeekSet:
		if offset < 0 {
			return 0, errs.ErrInval
		}
		sess.pos = uint64(offset)
	case vfs.SeekCur:
		if sess.pos == cursorAppend {
			return b.seekEndLocked(sess, 0)
		}
		next := int64(sess.pos) + offset
		if next < 0 {
			return 0, errs.ErrInval
		}
		sess.pos = uint64(next)
	case vfs.SeekEnd:
		return b.seekEndLocked(sess, offset)
	default:
		return 0, errs.ErrInval
	}
	return int64(sess.pos), nil
}

func (b *Backend) seekEndLocked(sess *Session, offset int64) (int64, error) {
	sess.node.mu.RLock()
	size := sess.node.stat.Size
	sess.node.mu.RUnlock()

	if offset == 0 {
		sess.pos = cursorAppend
		return int64(size), nil
	}
	next := int64(size) + offset
	if next < 0 {
		return 0, errs.ErrInval
	}
	sess.pos = uint64(next)
	return next, nil
}

// Truncate reallocates the node's payload to exactly size bytes,
// zero-filling any growth.
func (b *Backend) Truncate(fh vfs.Handle, size uint64) error {
	sess, err := b.lookupSession(fh)
	if err != nil {
		return err
	}

	n := sess.node
	n.mu.Lock()
	defer n.mu.Unlock()

	if size > uint64(len(n.data)) {
		grown := make([]byte, size)
		copy(grown, n.data)
		n.data = grown
	} else {
		n.data = n.data[:size]
	}
	n.stat.Size = size
	n.stat.ModTime = timeNow()
	return nil
}

// Mkdir creates an empty directory at path.
func (b *Backend) Mkdir(path string) error {
	parent, base, err := b.walkParent(path)
	if err != nil {
		return err
	}
	defer parent.release()

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != kindDir {
		return errs.ErrNotDir
	}
	if parent.findChildLocked(base) != nil {
		return errs.ErrAlready
	}
	child := newNode(kindDir, base, parent)
	child.refs.Store(1) // parent-owns-child only
	parent.children = append(parent.children, child)
	return nil
}

// Rmdir removes the empty directory at path.
func (b *Backend) Rmdir(path string) error {
	parent, base, err := b.walkParent(path)
	if err != nil {
		return err
	}
	defer parent.release()

	parent.mu.Lock()
	target := parent.findChildLocked(base)
	if target == nil {
		parent.mu.Unlock()
		return errs.ErrNoEnt
	}
	target.acquire()
	parent.mu.Unlock()

	target.mu.RLock()
	isDir := target.kind == kindDir
	empty := len(target.children) == 0
	target.mu.RUnlock()

	if !isDir {
		target.release()
		return errs.ErrNotDir
	}
	if !empty {
		target.release()
		return errs.ErrNotEmpty
	}

	target.release() // release the search refcount taken above

	parent.mu.Lock()
	parent.removeChildLocked(base)
	parent.mu.Unlock()
	target.release() // release the parent-owns-child refcount
	return nil
}

// Unlink removes the regular file at path.
func (b *Backend) Unlink(path string) error {
	parent, base, err := b.walkParent(path)
	if err != nil {
		return err
	}
	defer parent.release()

	parent.mu.Lock()
	target := parent.findChildLocked(base)
	if target == nil {
		parent.mu.Unlock()
		return errs.ErrNoEnt
	}
	target.acquire()
	parent.mu.Unlock()

	target.mu.RLock()
	isReg := target.kind == kindReg
	target.mu.RUnlock()

	if !isReg {
		target.release()
		return errs.ErrIsDir
	}

	target.release() // release the search refcount

	parent.mu.Lock()
	parent.removeChildLocked(base)
	parent.mu.Unlock()
	target.release() // release the parent-owns-child refcount
	return nil
}
