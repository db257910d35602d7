//go:build !windows

package errs

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// hostErrnoMap maps the syscall.Errno values the reference implementation
// names in include/vfs/inner/errno.h to the stable taxonomy. It is the
// fine-grained fallback FromHost uses once the portable os.Err* checks
// have failed to classify the error.
func hostErrnoMap(err error) (error, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return nil, false
	}

	switch errno {
	case unix.ENOENT:
		return ErrNoEnt, true
	case unix.EEXIST:
		return ErrExist, true
	case unix.EIO:
		return ErrIO, true
	case unix.ENOMEM:
		return ErrNoMem, true
	case unix.EACCES, unix.EPERM:
		return ErrAcces, true
	case unix.ENOTDIR:
		return ErrNotDir, true
	case unix.EISDIR:
		return ErrIsDir, true
	case unix.EINVAL:
		return ErrInval, true
	case unix.ESPIPE:
		return ErrSPipe, true
	case unix.ENOSYS:
		return ErrNoSys, true
	case unix.ENOTEMPTY:
		return ErrNotEmpty, true
	case unix.EBADF:
		return ErrBadF, true
	default:
		return nil, false
	}
}
