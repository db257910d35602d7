// Package randomfs implements the single-file cryptographic-randomness
// backend described in spec §6.4: a root directory containing exactly
// one regular file, "random", that streams crypto/rand bytes on read
// and silently discards writes. It is the simplest backend in this
// module and is grounded on nullfs's hook-substitution idiom, though it
// implements vfs.Backend directly rather than riding on memfs, since it
// has no tree and no session state worth sharing.
package randomfs

import (
	"crypto/rand"
	"sync/atomic"
	"time"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
)

const fileName = "random"

// Backend has no mutable state beyond its handle generator: every open
// handle behaves identically, so the "session" is just the generated
// fake handle value, never looked up again.
type Backend struct {
	vfs.UnimplementedBackend

	fhGen   atomic.Uint64
	startAt time.Time
}

func New() *Backend {
	return &Backend{startAt: time.Now()}
}

func (b *Backend) Destroy() {}

func (b *Backend) stat(path string) (vfs.Stat, error) {
	switch path {
	case "/":
		return vfs.Stat{Mode: vfs.ModeDir, ModTime: b.startAt}, nil
	case "/" + fileName:
		return vfs.Stat{Mode: vfs.ModeReg, ModTime: b.startAt}, nil
	default:
		return vfs.Stat{}, errs.ErrNoEnt
	}
}

func (b *Backend) Stat(path string) (vfs.Stat, error) {
	return b.stat(path)
}

func (b *Backend) Ls(path string, cb vfs.ListFunc) error {
	if path != "/" {
		if _, err := b.stat(path); err != nil {
			return err
		}
		return errs.ErrNotDir
	}
	cb(fileName, vfs.Stat{Mode: vfs.ModeReg, ModTime: b.startAt})
	return nil
}

func (b *Backend) Open(path string, flags vfs.OpenFlag) (vfs.Handle, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	if path != "/"+fileName {
		if path == "/" {
			return nil, errs.ErrIsDir
		}
		if flags.Has(vfs.CREATE) {
			return nil, errs.ErrAcces
		}
		return nil, errs.ErrNoEnt
	}
	return b.fhGen.Add(1), nil
}

func (b *Backend) Close(vfs.Handle) error { return nil }

// Seek always reports ESPIPE: a random stream has no coherent position
// to seek to, per spec §6.4.
func (b *Backend) Seek(vfs.Handle, int64, vfs.Whence) (int64, error) {
	return 0, errs.ErrSPipe
}

func (b *Backend) Read(_ vfs.Handle, buf []byte) (int, error) {
	n, err := rand.Read(buf)
	if err != nil {
		return n, errs.ErrIO
	}
	return n, nil
}

func (b *Backend) Write(_ vfs.Handle, buf []byte) (int, error) {
	return len(buf), nil
}

// Truncate always reports EINVAL: the random file has no meaningful
// size to change, per spec §6.4.
func (b *Backend) Truncate(vfs.Handle, uint64) error {
	return errs.ErrInval
}

func (b *Backend) Mkdir(path string) error {
	if _, err := b.stat(path); err == nil {
		return errs.ErrExist
	}
	return errs.ErrAcces
}

func (b *Backend) Rmdir(path string) error {
	if path == "/" {
		return errs.ErrAcces
	}
	return errs.ErrNoEnt
}

func (b *Backend) Unlink(path string) error {
	if path == "/"+fileName {
		return errs.ErrAcces
	}
	return errs.ErrNoEnt
}
