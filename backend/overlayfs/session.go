package overlayfs

import (
	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
)

// layer identifies which of the two composed backends a session
// addresses. Once opened, an overlay session never changes which layer
// it talks to (spec §3).
type layer int

const (
	layerLower layer = iota
	layerUpper
)

type session struct {
	fake  uint64
	layer layer
	real  vfs.Handle
}

func (b *Backend) backendFor(l layer) vfs.Backend {
	if l == layerUpper {
		return b.upper
	}
	return b.lower
}

func (b *Backend) newSession(l layer, real vfs.Handle) uint64 {
	fake := b.fhGen.Add(1)
	s := &session{fake: fake, layer: l, real: real}

	b.mu.Lock()
	b.sessions[fake] = s
	b.mu.Unlock()
	return fake
}

func (b *Backend) lookupSession(fh vfs.Handle) (*session, error) {
	fake, ok := fh.(uint64)
	if !ok {
		return nil, errs.ErrBadF
	}
	b.mu.Lock()
	s, ok := b.sessions[fake]
	b.mu.Unlock()
	if !ok {
		return nil, errs.ErrBadF
	}
	return s, nil
}

func (b *Backend) dropSession(fake uint64) {
	b.mu.Lock()
	delete(b.sessions, fake)
	b.mu.Unlock()
}
