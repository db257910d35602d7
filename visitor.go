package vfs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rclone/vfslib/errs"
	"github.com/rclone/vfslib/internal/vfslog"
)

var visitorLog = vfslog.For("visitor")

// Visitor is the public facade described in spec §4.3: it presents the
// Backend contract itself, routes path-addressed calls to the
// longest-matching mount, and owns the indirection table between the
// opaque fake handles it hands callers and the real handles backends
// return from Open.
//
// Visitor implements Backend so that a client never has to special-case
// "am I calling the visitor or a raw backend": both speak the same
// operation surface.
type Visitor struct {
	UnimplementedBackend

	mounts *mountTable

	fhGen atomic.Uint64

	tableMu sync.RWMutex
	table   map[uint64]*session
}

func newVisitor(mounts *mountTable) *Visitor {
	return &Visitor{
		mounts: mounts,
		table:  make(map[uint64]*session),
	}
}

// accessMount resolves path to its mount and residual path, taking a
// refcount on the mount the caller must release().
func (v *Visitor) accessMount(path string) (*mountRecord, string, error) {
	return v.mounts.lookup(path)
}

// Ls routes to the owning mount's Ls.
func (v *Visitor) Ls(path string, cb ListFunc) error {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return err
	}
	defer rec.release()
	return rec.backend.Ls(residual, cb)
}

// Stat routes to the owning mount's Stat.
func (v *Visitor) Stat(path string) (Stat, error) {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return Stat{}, err
	}
	defer rec.release()
	return rec.backend.Stat(residual)
}

// Mkdir routes to the owning mount's Mkdir.
func (v *Visitor) Mkdir(path string) error {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return err
	}
	defer rec.release()
	return rec.backend.Mkdir(residual)
}

// Rmdir routes to the owning mount's Rmdir.
func (v *Visitor) Rmdir(path string) error {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return err
	}
	defer rec.release()
	return rec.backend.Rmdir(residual)
}

// Unlink routes to the owning mount's Unlink.
func (v *Visitor) Unlink(path string) error {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return err
	}
	defer rec.release()
	return rec.backend.Unlink(residual)
}

// Rm removes whatever is at path, whether a regular file or an empty
// directory; convenience wrapper the client-facing §4.3 list names
// alongside the per-type operations.
func (v *Visitor) Rm(path string) error {
	rec, residual, err := v.accessMount(path)
	if err != nil {
		return err
	}
	defer rec.release()
	st, err := rec.backend.Stat(residual)
	if err != nil {
		return err
	}
	if st.Mode.IsDir() {
		return rec.backend.Rmdir(residual)
	}
	return rec.backend.Unlink(residual)
}

// Open allocates a session, acquires a mount reference for its lifetime,
// and opens the backend handle. Only on success is the session inserted
// into the handle table.
func (v *Visitor) Open(path string, flags OpenFlag) (Handle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	rec, residual, err := v.accessMount(path)
	if err != nil {
		return nil, err
	}

	real, err := rec.backend.Open(residual, flags)
	if err != nil {
		rec.release()
		return nil, err
	}

	fake := v.fhGen.Add(1)
	s := &session{fake: fake, real: real, mount: rec}
	s.refs.Store(1)

	v.tableMu.Lock()
	if _, dup := v.table[fake]; dup {
		v.tableMu.Unlock()
		// A duplicate fake-handle insertion means the generator or the
		// table invariant is broken; this is unrecoverable.
		panic(fmt.Sprintf("vfs: duplicate fake handle %d", fake))
	}
	v.table[fake] = s
	v.tableMu.Unlock()

	visitorLog.WithField("handle", fake).Debugf("opened %s", path)
	return fake, nil
}

// Close removes the session for fh from the table and drops its
// creation reference.
func (v *Visitor) Close(fh Handle) error {
	fake, ok := fh.(uint64)
	if !ok {
		return errs.ErrBadF
	}

	v.tableMu.Lock()
	s, ok := v.table[fake]
	if ok {
		delete(v.table, fake)
	}
	v.tableMu.Unlock()

	if !ok {
		return errs.ErrBadF
	}
	s.release()
	return nil
}

// withSession looks up the session for fh, acquiring a reference that
// the caller must release with s.release() when done.
func (v *Visitor) withSession(fh Handle) (*session, error) {
	fake, ok := fh.(uint64)
	if !ok {
		return nil, errs.ErrBadF
	}

	v.tableMu.RLock()
	s, ok := v.table[fake]
	if ok {
		s.acquire()
	}
	v.tableMu.RUnlock()

	if !ok {
		return nil, errs.ErrBadF
	}
	return s, nil
}

// Seek delegates to the session's backend.
func (v *Visitor) Seek(fh Handle, offset int64, whence Whence) (int64, error) {
	s, err := v.withSession(fh)
	if err != nil {
		return 0, err
	}
	defer s.release()
	return s.mount.backend.Seek(s.real, offset, whence)
}

// Read delegates to the session's backend.
func (v *Visitor) Read(fh Handle, buf []byte) (int, error) {
	s, err := v.withSession(fh)
	if err != nil {
		return 0, err
	}
	defer s.release()
	return s.mount.backend.Read(s.real, buf)
}

// Write delegates to the session's backend.
func (v *Visitor) Write(fh Handle, buf []byte) (int, error) {
	s, err := v.withSession(fh)
	if err != nil {
		return 0, err
	}
	defer s.release()
	return s.mount.backend.Write(s.real, buf)
}

// Truncate delegates to the session's backend.
func (v *Visitor) Truncate(fh Handle, size uint64) error {
	s, err := v.withSession(fh)
	if err != nil {
		return err
	}
	defer s.release()
	return s.mount.backend.Truncate(s.real, size)
}

// Destroy releases every open session (and in turn every mount
// reference a session held). It does not drain the mount table itself;
// Context.Shutdown does that separately once the visitor is gone.
func (v *Visitor) Destroy() {
	v.tableMu.Lock()
	sessions := v.table
	v.table = make(map[uint64]*session)
	v.tableMu.Unlock()

	for _, s := range sessions {
		s.release()
	}
}
