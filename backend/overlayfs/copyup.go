package overlayfs

import (
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
)

// copyUpChunk is the buffer size used to stream a lower-layer file into
// upper during copy-up, matching the read/write buffer size rclone's
// local backend uses for its own copy path.
const copyUpChunk = 64 * 1024

// copyUp materializes path's full lower content into upper before a
// write-intent Open is allowed to proceed, per spec §4.5: the lower
// layer is never mutated, so the only way to let a write land is to
// give the write somewhere else to go first.
func (b *Backend) copyUp(path string) error {
	if err := b.ensureUpperParents(path); err != nil {
		return err
	}

	src, err := b.lower.Open(path, vfs.RDONLY)
	if err != nil {
		return err
	}
	defer b.lower.Close(src)

	dst, err := b.upper.Open(path, vfs.WRONLY|vfs.CREATE|vfs.TRUNCATE)
	if err != nil {
		return err
	}
	defer b.upper.Close(dst)

	buf := make([]byte, copyUpChunk)
	for {
		n, rerr := b.lower.Read(src, buf)
		if n > 0 {
			if _, werr := writeFull(b.upper, dst, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if errs.Is(rerr, errs.EOF) {
				return nil
			}
			return rerr
		}
	}
}

// writeFull writes all of buf to fh, since Backend.Write (like io.Writer)
// is permitted to report a short write without it being an error.
func writeFull(be vfs.Backend, fh vfs.Handle, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := be.Write(fh, buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// purgeUpperTree recursively removes path's entire subtree from upper
// only, in preparation for the caller replacing it with a whiteout.
// Children are purged concurrently via errgroup; each child's own
// failure is logged and does not stop its siblings, matching the
// best-effort recursive rmdir spec §7 describes.
func (b *Backend) purgeUpperTree(path string) {
	type child struct {
		name string
		dir  bool
	}
	var children []child
	_ = b.upper.Ls(path, func(name string, st vfs.Stat) bool {
		children = append(children, child{name: name, dir: st.Mode.IsDir()})
		return true
	})

	var g errgroup.Group
	for _, c := range children {
		c := c
		childPath := path + "/" + c.name
		g.Go(func() error {
			if c.dir {
				b.purgeUpperTree(childPath)
				if err := b.upper.Rmdir(childPath); err != nil {
					log.Warnf("purge upper tree: rmdir %s: %v", childPath, err)
				}
			} else if err := b.upper.Unlink(childPath); err != nil {
				log.Warnf("purge upper tree: unlink %s: %v", childPath, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
