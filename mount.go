package vfs

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rclone/vfslib/errs"
	"github.com/rclone/vfslib/internal/pathutil"
	"github.com/rclone/vfslib/internal/vfslog"
)

var mountLog = vfslog.For("mount")

// mountRecord is one entry in the registry: an absolute prefix bound to a
// backend, kept alive by a reference count so an in-flight operation
// survives a concurrent unmount.
type mountRecord struct {
	prefix  string
	backend Backend
	refs    atomic.Int64
}

// release drops one reference; at zero the backend is destroyed. Per
// spec §3 this runs exactly once, when the last holder (the registry
// itself, or the last in-flight operation/session) lets go.
func (m *mountRecord) release() {
	if m.refs.Add(-1) == 0 {
		mountLog.WithField("prefix", m.prefix).Debugf("destroying backend, refcount reached zero")
		m.backend.Destroy()
	}
}

// mountTable is the ordered, prefix-matched mount registry described in
// spec §3/§4.2. Entries are kept in a slice sorted lexicographically by
// prefix, searched with a "strictly greater, then step back through
// predecessors" binary search (see lookup), rather than a
// generic ordered-map container: no example in the retrieval pack ships
// an ordered associative container suited to this, and a sorted slice
// plus binary search is the idiomatic stand-in.
type mountTable struct {
	mu      sync.RWMutex
	entries []*mountRecord // kept sorted by prefix
}

func newMountTable() *mountTable {
	return &mountTable{}
}

// mount inserts a new record for prefix, normalizing it first. Returns
// errs.ErrAlready on a duplicate exact prefix, errs.ErrInval on a
// malformed prefix.
func (t *mountTable) mount(prefix string, backend Backend) error {
	if !strings.HasPrefix(prefix, "/") {
		return errs.ErrInval
	}
	prefix = pathutil.NormalizeMountPrefix(prefix)

	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].prefix >= prefix })
	if i < len(t.entries) && t.entries[i].prefix == prefix {
		return errs.ErrAlready
	}

	rec := &mountRecord{prefix: prefix, backend: backend}
	rec.refs.Store(1)
	t.entries = append(t.entries, nil)
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = rec

	mountLog.WithField("prefix", prefix).Infof("mounted")
	return nil
}

// unmount removes the record for prefix (after normalization) and drops
// the registry's own reference. The backend survives until every
// in-flight operation that had already looked it up also releases.
func (t *mountTable) unmount(prefix string) error {
	prefix = pathutil.NormalizeMountPrefix(prefix)

	t.mu.Lock()
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].prefix >= prefix })
	if i >= len(t.entries) || t.entries[i].prefix != prefix {
		t.mu.Unlock()
		return errs.ErrNoEnt
	}
	rec := t.entries[i]
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	t.mu.Unlock()

	mountLog.WithField("prefix", prefix).Infof("unmounted")
	rec.release()
	return nil
}

// lookup finds the mount with the longest prefix of path, incrementing
// its refcount before returning. The caller must release() it when done.
// Returns errs.ErrNoEnt if no mount matches.
//
// A strictly-greater search for path finds the first entry sorting after
// it; the candidates are the entries before that one, tested with
// starts_with from the nearest predecessor backwards. The immediate
// predecessor is not always a match (with "/a" and "/a/b" mounted,
// "/a/x" sorts after "/a/b"), but every prefix of path sorts before
// any longer prefix of path, so the first match found walking back is
// the longest one.
func (t *mountTable) lookup(path string) (*mountRecord, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].prefix > path })
	for j := i - 1; j >= 0; j-- {
		rec := t.entries[j]
		if strings.HasPrefix(path, rec.prefix) {
			rec.refs.Add(1)
			return rec, pathutil.Residual(rec.prefix, path), nil
		}
	}
	return nil, "", errs.ErrNoEnt
}

// drain removes and releases every mount, used by Context.Shutdown.
func (t *mountTable) drain() {
	t.mu.Lock()
	entries := t.entries
	t.entries = nil
	t.mu.Unlock()

	for _, rec := range entries {
		rec.release()
	}
}
