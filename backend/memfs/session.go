package memfs

import (
	"math"
	"sync"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
)

// cursorAppend is the sentinel cursor value meaning "always append to
// the end of the file", spec §3's MAX-U64 marker.
const cursorAppend uint64 = math.MaxUint64

// Session is the per-open state MemFS tracks for one Open call: the
// opaque fake handle it was allocated under, the flags it was opened
// with, its cursor, and the node it addresses. A per-session mutex
// serializes cursor mutation so two readers sharing a handle see a
// monotonically advancing cursor.
type Session struct {
	fake   uint64
	flags  vfs.OpenFlag
	node   *Node
	cursor sync.Mutex // guards pos below
	pos    uint64
}

func (s *Session) writeOnly() bool {
	return s.flags.Has(vfs.WRONLY) && !s.flags.Has(vfs.RDONLY)
}

func (s *Session) readOnly() bool {
	return s.flags.Has(vfs.RDONLY) && !s.flags.Has(vfs.WRONLY)
}

// Hook lets a derived backend substitute MemFS's read/write semantics
// while reusing every other concern (path walking, directory mutation,
// locking, session lifecycle). nullfs is the one example in this
// module: it keeps MemFS's tree and sessions but swaps in a hook that
// behaves like /dev/zero and /dev/null instead of a real byte buffer.
type Hook interface {
	Read(sess *Session, n *Node, buf []byte) (int, error)
	Write(sess *Session, n *Node, buf []byte) (int, error)
}

type defaultHook struct{}

// Read implements the default MemFS semantics described in spec §4.4: if
// the cursor is at or past the end of the file, report EOF; otherwise
// copy min(len(buf), size-cursor) bytes and advance the cursor.
func (defaultHook) Read(sess *Session, n *Node, buf []byte) (int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	size := uint64(len(n.data))
	if sess.pos >= size {
		return 0, errs.EOF
	}
	avail := size - sess.pos
	toRead := uint64(len(buf))
	if toRead > avail {
		toRead = avail
	}
	copy(buf, n.data[sess.pos:sess.pos+toRead])
	sess.pos += toRead
	return int(toRead), nil
}

// Write implements the default MemFS semantics described in spec §4.4.
func (defaultHook) Write(sess *Session, n *Node, buf []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	length := uint64(len(buf))
	var newSize uint64

	switch {
	case sess.pos == cursorAppend:
		n.data = append(n.data, buf...)
		newSize = uint64(len(n.data))
	case sess.pos+length < uint64(len(n.data)):
		copy(n.data[sess.pos:], buf)
		newSize = uint64(len(n.data))
	default:
		newSize = sess.pos + length
		if newSize > uint64(len(n.data)) {
			grown := make([]byte, newSize) // zero-fills any gap before pos
			copy(grown, n.data)
			n.data = grown
		}
		copy(n.data[sess.pos:], buf)
	}

	n.stat.Size = newSize
	n.stat.ModTime = timeNow()
	if sess.pos != cursorAppend {
		sess.pos += length
	}
	return int(length), nil
}
