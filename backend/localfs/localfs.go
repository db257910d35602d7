// Package localfs implements a vfs.Backend backed directly by the host
// filesystem, rooted at a single directory. It is grounded on rclone's
// backend/local — the teacher's own host-OS backend — trimmed down to
// the operations this module's Backend contract names, with the same
// split of "translate the host error, abort on anything unmapped" that
// errs.FromHost exists for.
package localfs

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
	"github.com/rclone/vfslib/internal/pathutil"
	"github.com/rclone/vfslib/internal/vfslog"
)

var log = vfslog.For("localfs")

// wrapHost translates a host error into the taxonomy and attaches the
// logical path as context, the way backend/local's own commands wrap
// host errors with github.com/pkg/errors for a readable trail back to
// the failing call. errors.Is still sees through the wrap to the
// sentinel, since pkg/errors errors implement Unwrap.
func wrapHost(err error, path string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(errs.FromHost(err), "%s", path)
}

// Backend roots every logical path at root on the host filesystem. root
// must exist and be a directory; New does not create it.
type Backend struct {
	vfs.UnimplementedBackend

	root string

	mu       sync.Mutex
	fhGen    atomic.Uint64
	sessions map[uint64]*os.File
}

// New opens a localfs backend rooted at root. root is resolved once at
// construction time via filepath.Abs, the way rclone's local backend
// resolves its remote's root up front rather than on every call.
func New(root string) (*Backend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, errs.FromHost(err)
	}
	if !fi.IsDir() {
		return nil, errs.ErrNotDir
	}
	return &Backend{root: abs, sessions: make(map[uint64]*os.File)}, nil
}

// resolve maps a logical, slash-rooted path onto the host filesystem,
// refusing to leave root via "..".
func (b *Backend) resolve(path string) (string, error) {
	parts := pathutil.Split(path)
	for _, p := range parts {
		if p == ".." {
			return "", errs.ErrAcces
		}
	}
	return filepath.Join(append([]string{b.root}, parts...)...), nil
}

func (b *Backend) Destroy() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[uint64]*os.File)
	b.mu.Unlock()

	for _, f := range sessions {
		if err := f.Close(); err != nil {
			log.Warnf("destroy: close leaked handle: %v", err)
		}
	}
}

func (b *Backend) Stat(path string) (vfs.Stat, error) {
	hp, err := b.resolve(path)
	if err != nil {
		return vfs.Stat{}, err
	}
	fi, err := os.Stat(hp)
	if err != nil {
		return vfs.Stat{}, wrapHost(err, path)
	}
	return statFromFileInfo(fi), nil
}

func statFromFileInfo(fi os.FileInfo) vfs.Stat {
	mode := vfs.ModeReg
	if fi.IsDir() {
		mode = vfs.ModeDir
	}
	return vfs.Stat{Mode: mode, Size: uint64(fi.Size()), ModTime: fi.ModTime()}
}

func (b *Backend) Ls(path string, cb vfs.ListFunc) error {
	hp, err := b.resolve(path)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(hp)
	if err != nil {
		return wrapHost(err, path)
	}
	for _, ent := range entries {
		info, err := ent.Info()
		if err != nil {
			return wrapHost(err, path)
		}
		if !cb(ent.Name(), statFromFileInfo(info)) {
			break
		}
	}
	return nil
}

func hostFlags(flags vfs.OpenFlag) int {
	f := 0
	switch {
	case flags.Has(vfs.RDWR):
		f |= os.O_RDWR
	case flags.Has(vfs.WRONLY):
		f |= os.O_WRONLY
	default:
		f |= os.O_RDONLY
	}
	if flags.Has(vfs.CREATE) {
		f |= os.O_CREATE
	}
	if flags.Has(vfs.APPEND) {
		f |= os.O_APPEND
	}
	if flags.Has(vfs.TRUNCATE) {
		f |= os.O_TRUNC
	}
	return f
}

func (b *Backend) Open(path string, flags vfs.OpenFlag) (vfs.Handle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	hp, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(hp, hostFlags(flags), 0o644)
	if err != nil {
		return nil, wrapHost(err, path)
	}

	fake := b.fhGen.Add(1)
	b.mu.Lock()
	b.sessions[fake] = f
	b.mu.Unlock()
	return fake, nil
}

func (b *Backend) file(fh vfs.Handle) (*os.File, error) {
	fake, ok := fh.(uint64)
	if !ok {
		return nil, errs.ErrBadF
	}
	b.mu.Lock()
	f, ok := b.sessions[fake]
	b.mu.Unlock()
	if !ok {
		return nil, errs.ErrBadF
	}
	return f, nil
}

func (b *Backend) Close(fh vfs.Handle) error {
	fake, ok := fh.(uint64)
	if !ok {
		return errs.ErrBadF
	}
	b.mu.Lock()
	f, ok := b.sessions[fake]
	delete(b.sessions, fake)
	b.mu.Unlock()
	if !ok {
		return errs.ErrBadF
	}
	return errs.FromHost(f.Close())
}

func (b *Backend) Seek(fh vfs.Handle, offset int64, whence vfs.Whence) (int64, error) {
	f, err := b.file(fh)
	if err != nil {
		return 0, err
	}
	n, err := f.Seek(offset, int(whence))
	if err != nil {
		return 0, errs.FromHost(err)
	}
	return n, nil
}

func (b *Backend) Read(fh vfs.Handle, buf []byte) (int, error) {
	f, err := b.file(fh)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(buf)
	if err != nil {
		if err == io.EOF {
			return n, errs.EOF
		}
		return n, errs.FromHost(err)
	}
	return n, nil
}

func (b *Backend) Write(fh vfs.Handle, buf []byte) (int, error) {
	f, err := b.file(fh)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(buf)
	if err != nil {
		return n, errs.FromHost(err)
	}
	return n, nil
}

func (b *Backend) Truncate(fh vfs.Handle, size uint64) error {
	f, err := b.file(fh)
	if err != nil {
		return err
	}
	return errs.FromHost(f.Truncate(int64(size)))
}

func (b *Backend) Mkdir(path string) error {
	hp, err := b.resolve(path)
	if err != nil {
		return err
	}
	return wrapHost(os.Mkdir(hp, 0o755), path)
}

// Rmdir removes the directory at path. os.Remove alone isn't enough
// here: on most platforms it tries unlink(2) first and falls back to
// rmdir(2) (or the reverse), so it happily removes a plain file instead
// of reporting ErrNotDir. Stat first and reject the type mismatch
// before ever touching the host entry.
func (b *Backend) Rmdir(path string) error {
	hp, err := b.resolve(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(hp)
	if err != nil {
		return wrapHost(err, path)
	}
	if !fi.IsDir() {
		return errs.ErrNotDir
	}
	return wrapHost(os.Remove(hp), path)
}

// Unlink removes the regular file at path, rejecting a directory with
// ErrIsDir up front for the same reason Rmdir stats before removing.
func (b *Backend) Unlink(path string) error {
	hp, err := b.resolve(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(hp)
	if err != nil {
		return wrapHost(err, path)
	}
	if fi.IsDir() {
		return errs.ErrIsDir
	}
	return wrapHost(os.Remove(hp), path)
}
