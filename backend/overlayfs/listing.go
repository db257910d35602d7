package overlayfs

import (
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/errs"
)

// Ls merges the lower and upper directory listings into one logical
// view: an upper entry always wins over a same-named lower entry, and a
// "<name>.whiteout" entry in upper removes <name> from the merged view
// instead of appearing itself. Lower and upper are listed concurrently
// via errgroup, since neither enumeration can influence the other; the
// merge itself runs single-threaded once both are in hand.
func (b *Backend) Ls(path string, cb vfs.ListFunc) error {
	var lowerEntries, upperEntries map[string]vfs.Stat
	var lowerErr, upperErr error

	var g errgroup.Group
	g.Go(func() error {
		lowerEntries, lowerErr = collect(b.lower, path)
		return nil
	})
	g.Go(func() error {
		upperEntries, upperErr = collect(b.upper, path)
		return nil
	})
	_ = g.Wait() // collect never returns a non-nil error itself

	lowerMissing := errs.Is(lowerErr, errs.ErrNoEnt)
	upperMissing := errs.Is(upperErr, errs.ErrNoEnt)
	if lowerErr != nil && !lowerMissing {
		return lowerErr
	}
	if upperErr != nil && !upperMissing {
		return upperErr
	}
	if lowerMissing && upperMissing {
		return errs.ErrNoEnt
	}

	merged := make(map[string]vfs.Stat, len(lowerEntries)+len(upperEntries))
	for name, st := range lowerEntries {
		merged[name] = st
	}
	for name, st := range upperEntries {
		if base, ok := strings.CutSuffix(name, whiteoutSuffix); ok {
			delete(merged, base)
			continue
		}
		merged[name] = st
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		if strings.HasSuffix(name, whiteoutSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cb(name, merged[name]) {
			break
		}
	}
	return nil
}

// collect lists one backend's directory into a name->Stat map. A
// vfs.ListFunc always returns true so the callback never short-circuits
// the underlying enumeration.
func collect(be vfs.Backend, path string) (map[string]vfs.Stat, error) {
	out := make(map[string]vfs.Stat)
	err := be.Ls(path, func(name string, st vfs.Stat) bool {
		out[name] = st
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
