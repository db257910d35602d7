// Package overlayfs implements the two-layer union backend: a writable
// upper layer stacked on a read-only-in-spirit lower layer, with
// copy-up-on-write and whiteout-marked deletion. It is grounded on
// rclone's backend/union (the only other example repo that composes
// several Backend implementations into one, via policy-driven entry
// merging) adapted down to exactly two fixed layers, which is all this
// module's spec calls for.
package overlayfs

import (
	"sync"
	"sync/atomic"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
	"github.com/rclone/vfslib/internal/pathutil"
	"github.com/rclone/vfslib/internal/vfslog"
)

var log = vfslog.For("overlayfs")

// whiteoutSuffix marks a deleted lower entry. A whiteout for "foo" lives
// in the upper layer, in foo's own parent directory, as a sibling named
// "foo.whiteout" — so appending the suffix to any already-correct path
// string always lands in the right place.
const whiteoutSuffix = ".whiteout"

func whiteoutPath(path string) string {
	return path + whiteoutSuffix
}

// removeWhiteout deletes a whiteout marker, which may itself be either a
// regular file (masking a deleted lower file, per markWhiteout) or a
// directory (masking a deleted lower directory, per the whiteout-dir
// Rmdir leaves behind) — so it must check which before picking Unlink
// or Rmdir.
func (b *Backend) removeWhiteout(wh string) error {
	st, err := b.upper.Stat(wh)
	if err != nil {
		if errs.Is(err, errs.ErrNoEnt) {
			return nil
		}
		return err
	}
	if st.Mode.IsDir() {
		return b.upper.Rmdir(wh)
	}
	return b.upper.Unlink(wh)
}

// Backend composes two arbitrary vfs.Backend values into one union view.
// It owns both: Destroy tears down the upper and lower backends in turn.
type Backend struct {
	vfs.UnimplementedBackend

	lower, upper vfs.Backend

	mu       sync.Mutex
	fhGen    atomic.Uint64
	sessions map[uint64]*session
}

// New composes lower and upper into a union backend. upper receives every
// write and copy-up; lower is never mutated.
func New(lower, upper vfs.Backend) *Backend {
	return &Backend{
		lower:    lower,
		upper:    upper,
		sessions: make(map[uint64]*session),
	}
}

func (b *Backend) Destroy() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[uint64]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		if err := b.backendFor(s.layer).Close(s.real); err != nil {
			log.Warnf("destroy: close leaked handle: %v", err)
		}
	}

	b.upper.Destroy()
	b.lower.Destroy()
}

// class classifies a path against the union view, per spec §4.5: upper
// wins outright, a whiteout on any ancestor masks the lower entry
// entirely, and otherwise lower is consulted.
type class int

const (
	classNoent class = iota
	classUpper
	classLower
	classWhiteout
)

// classify resolves path to its logical state. It returns the Stat for
// classUpper and classLower, and the whiteout's own path for
// classWhiteout (useful to callers that need to remove it).
func (b *Backend) classify(path string) (class, vfs.Stat, string, error) {
	if st, err := b.upper.Stat(path); err == nil {
		return classUpper, st, "", nil
	} else if !errs.Is(err, errs.ErrNoEnt) {
		return classNoent, vfs.Stat{}, "", err
	}

	for _, ancestor := range ancestors(path) {
		wp := whiteoutPath(ancestor)
		if _, err := b.upper.Stat(wp); err == nil {
			return classWhiteout, vfs.Stat{}, wp, nil
		} else if !errs.Is(err, errs.ErrNoEnt) {
			return classNoent, vfs.Stat{}, "", err
		}
	}

	if st, err := b.lower.Stat(path); err == nil {
		return classLower, st, "", nil
	} else if !errs.Is(err, errs.ErrNoEnt) {
		return classNoent, vfs.Stat{}, "", err
	}

	return classNoent, vfs.Stat{}, "", errs.ErrNoEnt
}

// ancestors returns path's ancestor directories, shallowest first,
// followed by path itself — the order spec §4.5 prescribes for the
// whiteout scan, so a whiteout on a shallow ancestor masks everything
// beneath it before a deeper, more specific entry is even considered.
func ancestors(path string) []string {
	parts := pathutil.Split(path)
	if len(parts) == 0 {
		return nil
	}
	out := make([]string, len(parts))
	cur := ""
	for i, p := range parts {
		cur += "/" + p
		out[i] = cur
	}
	return out
}

func (b *Backend) Stat(path string) (vfs.Stat, error) {
	cl, st, _, err := b.classify(path)
	if err != nil {
		return vfs.Stat{}, err
	}
	if cl == classUpper || cl == classLower {
		return st, nil
	}
	return vfs.Stat{}, errs.ErrNoEnt
}

// ensureUpperParents mkdirs every ancestor directory of path in the
// upper layer, ignoring entries that already exist. copy-up and
// whiteout-removing opens both need the destination directory to exist
// in upper even when it was only ever materialized in lower.
func (b *Backend) ensureUpperParents(path string) error {
	dirs := ancestors(path)
	if len(dirs) == 0 {
		return nil
	}
	dirs = dirs[:len(dirs)-1] // path's own directory slot is handled by the caller
	for _, d := range dirs {
		if d == "" {
			continue
		}
		// memfs reports an existing entry as ErrAlready, hosts as ErrExist.
		if err := b.upper.Mkdir(d); err != nil && !errs.Is(err, errs.ErrExist) && !errs.Is(err, errs.ErrAlready) {
			return err
		}
	}
	return nil
}

func (b *Backend) Open(path string, flags vfs.OpenFlag) (vfs.Handle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}

	cl, _, whiteout, err := b.classify(path)
	if err != nil {
		return nil, err
	}

	switch cl {
	case classUpper:
		real, err := b.upper.Open(path, flags)
		if err != nil {
			return nil, err
		}
		return b.newSession(layerUpper, real), nil

	case classLower:
		if flags.Has(vfs.WRONLY) {
			if err := b.copyUp(path); err != nil {
				return nil, err
			}
			real, err := b.upper.Open(path, flags)
			if err != nil {
				return nil, err
			}
			return b.newSession(layerUpper, real), nil
		}
		real, err := b.lower.Open(path, flags)
		if err != nil {
			return nil, err
		}
		return b.newSession(layerLower, real), nil

	case classWhiteout:
		if err := b.ensureUpperParents(path); err != nil {
			return nil, err
		}
		if err := b.removeWhiteout(whiteout); err != nil {
			return nil, err
		}
		real, err := b.upper.Open(path, flags|vfs.CREATE)
		if err != nil {
			return nil, err
		}
		return b.newSession(layerUpper, real), nil

	default: // classNoent
		if !flags.Has(vfs.CREATE) {
			return nil, errs.ErrNoEnt
		}
		if err := b.ensureUpperParents(path); err != nil {
			return nil, err
		}
		real, err := b.upper.Open(path, flags)
		if err != nil {
			return nil, err
		}
		return b.newSession(layerUpper, real), nil
	}
}

func (b *Backend) Close(fh vfs.Handle) error {
	s, err := b.lookupSession(fh)
	if err != nil {
		return err
	}
	b.dropSession(s.fake)
	return b.backendFor(s.layer).Close(s.real)
}

func (b *Backend) Seek(fh vfs.Handle, offset int64, whence vfs.Whence) (int64, error) {
	s, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}
	return b.backendFor(s.layer).Seek(s.real, offset, whence)
}

func (b *Backend) Read(fh vfs.Handle, buf []byte) (int, error) {
	s, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}
	return b.backendFor(s.layer).Read(s.real, buf)
}

func (b *Backend) Write(fh vfs.Handle, buf []byte) (int, error) {
	s, err := b.lookupSession(fh)
	if err != nil {
		return 0, err
	}
	if s.layer != layerUpper {
		// Open() copies up before returning a write-capable handle;
		// reaching here with a lower-layer handle means the caller
		// opened read-only and is writing anyway.
		return 0, errs.ErrBadF
	}
	return b.upper.Write(s.real, buf)
}

func (b *Backend) Truncate(fh vfs.Handle, size uint64) error {
	s, err := b.lookupSession(fh)
	if err != nil {
		return err
	}
	if s.layer != layerUpper {
		return errs.ErrBadF
	}
	return b.upper.Truncate(s.real, size)
}

func (b *Backend) Mkdir(path string) error {
	cl, _, whiteout, err := b.classify(path)
	if err != nil && !errs.Is(err, errs.ErrNoEnt) {
		return err
	}
	if cl == classUpper || cl == classLower {
		return errs.ErrExist
	}

	parent, _ := pathutil.SplitParent(path)
	if parent != "" {
		pcl, pst, _, err := b.classify(parent)
		if err != nil {
			return err
		}
		if pcl == classNoent || pcl == classWhiteout {
			return errs.ErrNoEnt
		}
		if !pst.Mode.IsDir() {
			return errs.ErrNotDir
		}
	}

	if err := b.ensureUpperParents(path); err != nil {
		return err
	}
	if cl == classWhiteout {
		if err := b.removeWhiteout(whiteout); err != nil {
			return err
		}
	}
	return b.upper.Mkdir(path)
}

func (b *Backend) Unlink(path string) error {
	cl, st, _, err := b.classify(path)
	if err != nil {
		return err
	}
	if cl == classNoent || cl == classWhiteout {
		return errs.ErrNoEnt
	}
	if st.Mode.IsDir() {
		return errs.ErrIsDir
	}

	if cl == classUpper {
		if err := b.upper.Unlink(path); err != nil {
			return err
		}
	}

	if _, lerr := b.lower.Stat(path); lerr == nil {
		return b.markWhiteout(path)
	}
	return nil
}

func (b *Backend) markWhiteout(path string) error {
	if err := b.ensureUpperParents(path); err != nil {
		return err
	}
	wh := whiteoutPath(path)
	fh, err := b.upper.Open(wh, vfs.WRONLY|vfs.CREATE|vfs.TRUNCATE)
	if err != nil {
		if errs.Is(err, errs.ErrExist) {
			return nil
		}
		return err
	}
	return b.upper.Close(fh)
}

func (b *Backend) Rmdir(path string) error {
	st, err := b.Stat(path)
	if err != nil {
		return err
	}
	if !st.Mode.IsDir() {
		return errs.ErrNotDir
	}

	empty := true
	lsErr := b.Ls(path, func(string, vfs.Stat) bool {
		empty = false
		return false
	})
	if lsErr != nil {
		return lsErr
	}
	if !empty {
		return errs.ErrNotEmpty
	}

	if _, err := b.upper.Stat(path); err == nil {
		b.purgeUpperTree(path)
		if err := b.upper.Rmdir(path); err != nil {
			return err
		}
	} else if !errs.Is(err, errs.ErrNoEnt) {
		return err
	}

	if lst, lerr := b.lower.Stat(path); lerr == nil && lst.Mode.IsDir() {
		if err := b.ensureUpperParents(path); err != nil {
			return err
		}
		if err := b.upper.Mkdir(whiteoutPath(path)); err != nil && !errs.Is(err, errs.ErrExist) {
			return err
		}
	}
	return nil
}
