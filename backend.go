// Package vfs implements a composable virtual filesystem: pluggable
// backends are mounted at absolute path prefixes in a process-wide
// registry, and a single Visitor multiplexes concurrent client access to
// them behind one uniform operation surface.
package vfs

import (
	"io"
	"time"

	"github.com/rclone/vfslib/errs"
)

// StatMode reports whether a path names a directory or a regular file.
type StatMode uint32

// Stat mode bits. Disjoint, matching the historical VFS_S_IFDIR/VFS_S_IFREG
// split this library's on-disk and wire representations were modelled on.
const (
	ModeDir StatMode = 0x4000
	ModeReg StatMode = 0x8000
)

// IsDir reports whether m names a directory.
func (m StatMode) IsDir() bool { return m == ModeDir }

// IsRegular reports whether m names a regular file.
func (m StatMode) IsRegular() bool { return m == ModeReg }

// Stat describes a filesystem entry.
type Stat struct {
	Mode    StatMode
	Size    uint64
	ModTime time.Time
}

// OpenFlag is a bitset of flags passed to Backend.Open.
type OpenFlag uint32

// Open flags. RDWR is a combination, not an independent bit, so a
// flag set can be tested with Has without a separate case for it.
const (
	RDONLY OpenFlag = 1 << iota
	WRONLY
	APPEND
	TRUNCATE
	CREATE
)

// RDWR is shorthand for RDONLY|WRONLY.
const RDWR = RDONLY | WRONLY

// Has reports whether f contains every bit in want.
func (f OpenFlag) Has(want OpenFlag) bool { return f&want == want }

// Validate rejects flag combinations that spec §4.1 forbids: APPEND and
// TRUNCATE are mutually exclusive.
func (f OpenFlag) Validate() error {
	if f.Has(APPEND) && f.Has(TRUNCATE) {
		return errs.ErrInval
	}
	return nil
}

// Whence selects the reference point for Backend.Seek. The values are
// exactly io.SeekStart/io.SeekCurrent/io.SeekEnd so backends can delegate
// straight to an io.Seeker when they wrap one (localfs does).
type Whence = int

// Seek reference points, aliased from the io package.
const (
	SeekSet Whence = io.SeekStart
	SeekCur Whence = io.SeekCurrent
	SeekEnd Whence = io.SeekEnd
)

// Handle is an opaque, backend-defined file handle. The visitor hands out
// its own opaque handles to callers and keeps a table mapping them to the
// real handle a backend returned from Open; backends are free to use
// whatever concrete type suits them (a pointer, an integer, an *os.File).
type Handle = any

// ListFunc is invoked once per directory entry by Backend.Ls. Returning
// false stops the listing early (mirrors sync.Map.Range, and replaces the
// "return nonzero to stop" C convention the library was ported from).
type ListFunc func(name string, stat Stat) bool

// Backend is the uniform operation surface every filesystem implements.
// Every method except Destroy is optional: a backend that does not
// support an operation should embed UnimplementedBackend and leave that
// method unoverridden, which reports errs.ErrNoSys.
type Backend interface {
	// Destroy releases all resources held by the backend. No concurrent
	// or subsequent call is made against the backend once Destroy runs.
	Destroy()

	// Ls invokes cb for each immediate child of the directory at path.
	Ls(path string, cb ListFunc) error

	// Stat fills in the mode, size and modification time of path.
	Stat(path string) (Stat, error)

	// Open returns a real handle for path under the given flags.
	Open(path string, flags OpenFlag) (Handle, error)

	// Close releases fh. Always succeeds on a handle Open returned.
	Close(fh Handle) error

	// Seek repositions fh's cursor and returns the resulting absolute
	// offset.
	Seek(fh Handle, offset int64, whence Whence) (int64, error)

	// Read reads into buf, returning the number of bytes read. At end of
	// file it returns (0, io.EOF). A count of 0 with a nil error (as for
	// an empty buf) is not end of file.
	Read(fh Handle, buf []byte) (int, error)

	// Write writes buf, returning the number of bytes written.
	Write(fh Handle, buf []byte) (int, error)

	// Truncate grows or shrinks fh to exactly size bytes, zero-filling
	// any growth.
	Truncate(fh Handle, size uint64) error

	// Mkdir creates an empty directory at path.
	Mkdir(path string) error

	// Rmdir removes the empty directory at path.
	Rmdir(path string) error

	// Unlink removes the regular file at path.
	Unlink(path string) error
}

// UnimplementedBackend is embedded by backends that do not support every
// operation. Each method reports errs.ErrNoSys; embedders override the
// operations they do support.
type UnimplementedBackend struct{}

func (UnimplementedBackend) Destroy() {}

func (UnimplementedBackend) Ls(string, ListFunc) error { return errs.ErrNoSys }

func (UnimplementedBackend) Stat(string) (Stat, error) { return Stat{}, errs.ErrNoSys }

func (UnimplementedBackend) Open(string, OpenFlag) (Handle, error) { return nil, errs.ErrNoSys }

func (UnimplementedBackend) Close(Handle) error { return errs.ErrNoSys }

func (UnimplementedBackend) Seek(Handle, int64, Whence) (int64, error) { return 0, errs.ErrNoSys }

func (UnimplementedBackend) Read(Handle, []byte) (int, error) { return 0, errs.ErrNoSys }

func (UnimplementedBackend) Write(Handle, []byte) (int, error) { return 0, errs.ErrNoSys }

func (UnimplementedBackend) Truncate(Handle, uint64) error { return errs.ErrNoSys }

func (UnimplementedBackend) Mkdir(string) error { return errs.ErrNoSys }

func (UnimplementedBackend) Rmdir(string) error { return errs.ErrNoSys }

func (UnimplementedBackend) Unlink(string) error { return errs.ErrNoSys }
