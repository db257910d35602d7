package vfs

import (
	"sync"

	"github.com/rclone/vfslib/errs"
)

// Context owns one mount registry and the Visitor that multiplexes
// access to it. Most programs only need the package-level convenience
// wrapper (Init/Shutdown/Mount/Unmount/VisitorHandle/Rm) around a single global
// Context, but embedding the registry in an owned value keeps the door
// open for a program that wants more than one independent VFS universe
// (tests, for one).
type Context struct {
	mounts  *mountTable
	visitor *Visitor
}

// New creates an independent VFS context with its own mount registry and
// visitor.
func New() *Context {
	c := &Context{mounts: newMountTable()}
	c.visitor = newVisitor(c.mounts)
	return c
}

// Mount binds backend at prefix. prefix must be absolute UTF-8 and obeys
// the normalization rule in spec §4.2.
func (c *Context) Mount(prefix string, backend Backend) error {
	return c.mounts.mount(prefix, backend)
}

// Unmount removes the mount at prefix. The backend is destroyed once the
// last in-flight operation or open session against it releases.
func (c *Context) Unmount(prefix string) error {
	return c.mounts.unmount(prefix)
}

// Visitor returns the backend-contract facade that routes calls to the
// longest-matching mount. It is never destroyed by the caller; Shutdown
// tears it down.
func (c *Context) Visitor() Backend {
	return c.visitor
}

// Shutdown destroys the visitor (releasing every open session and the
// mount references they hold) and then drains the mount table. The
// caller must ensure no other call into this Context is in progress or
// will be issued once Shutdown starts.
func (c *Context) Shutdown() {
	c.visitor.Destroy()
	c.mounts.drain()
}

var (
	globalMu sync.Mutex
	global   *Context
)

// Init installs the process-wide singleton Context. A second call
// without an intervening Shutdown returns errs.ErrAlready.
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return errs.ErrAlready
	}
	global = New()
	return nil
}

// Shutdown tears down the singleton installed by Init. The caller must
// ensure no other API call is in progress or will be issued.
func Shutdown() {
	globalMu.Lock()
	c := global
	global = nil
	globalMu.Unlock()
	if c != nil {
		c.Shutdown()
	}
}

func singleton() *Context {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Mount binds backend at prefix in the singleton Context installed by
// Init.
func Mount(prefix string, backend Backend) error {
	c := singleton()
	if c == nil {
		return errs.ErrInval
	}
	return c.Mount(prefix, backend)
}

// Unmount removes the mount at prefix in the singleton Context.
func Unmount(prefix string) error {
	c := singleton()
	if c == nil {
		return errs.ErrNoEnt
	}
	return c.Unmount(prefix)
}

// VisitorHandle returns the singleton Context's visitor.
func VisitorHandle() Backend {
	c := singleton()
	if c == nil {
		return nil
	}
	return c.Visitor()
}

// Rm stats path and dispatches to Rmdir or Unlink as appropriate, the
// path-addressed convenience operation spec §4.3 lists alongside Ls,
// Stat, Mkdir and Unlink.
func Rm(path string) error {
	c := singleton()
	if c == nil {
		return errs.ErrInval
	}
	return c.visitor.Rm(path)
}
