// Package errs defines the stable error taxonomy shared by every backend
// and the visitor, and translates host-OS errors into it. It is the Go
// port of the reference library's include/vfs/inner/errno.h and
// src/utils/errcode.c.
package errs

import (
	"errors"
	"io"
)

// Sentinel errors. Compare with errors.Is, never with ==, since backends
// may wrap these with context via github.com/pkg/errors.
var (
	ErrNoEnt    = errors.New("no such file or directory")
	ErrExist    = errors.New("file exists")
	ErrAlready  = errors.New("already")
	ErrIO       = errors.New("i/o error")
	ErrBadF     = errors.New("bad file descriptor")
	ErrNoMem    = errors.New("out of memory")
	ErrAcces    = errors.New("permission denied")
	ErrNotDir   = errors.New("not a directory")
	ErrIsDir    = errors.New("is a directory")
	ErrInval    = errors.New("invalid argument")
	ErrSPipe    = errors.New("illegal seek")
	ErrNoSys    = errors.New("function not implemented")
	ErrNotEmpty = errors.New("directory not empty")
)

// EOF is the end-of-file sentinel. It is io.EOF itself: a read that
// returns EOF is not a failure, exactly as io.Reader already specifies,
// so there is no reason to mint a second sentinel distinct from the
// standard library's.
var EOF = io.EOF

// FatalError wraps a host error that has no mapping in the taxonomy
// above. Per spec this is an unrecoverable broken-invariant condition:
// callers that hit it should treat it the way the reference library
// treats a missing errno mapping, by aborting rather than limping on
// with a guessed error.
type FatalError struct {
	Host error
}

func (e *FatalError) Error() string {
	return "vfs: unmapped host error: " + e.Host.Error()
}

func (e *FatalError) Unwrap() error { return e.Host }

// Is reports whether err is, or wraps, target via errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
