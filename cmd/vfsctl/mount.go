package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/backend/localfs"
	"github.com/rclone/vfslib/backend/memfs"
	"github.com/rclone/vfslib/backend/nullfs"
	"github.com/rclone/vfslib/backend/overlayfs"
	"github.com/rclone/vfslib/backend/randomfs"
)

func init() {
	root.AddCommand(mountCmd)
	root.AddCommand(unmountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount <prefix> <spec>",
	Short: "Mount a backend at prefix",
	Long: `<spec> names a backend kind, optionally with one argument:

  memfs                   an empty in-memory tree
  nullfs                  /dev/zero-and-/dev/null over an in-memory tree
  randomfs                a single "random" file of crypto/rand bytes
  localfs:<host-dir>      the host directory at <host-dir>
  overlayfs:<lower>:<upper>  two backend specs composed as lower/upper;
                          the first ":" after "overlayfs:" ends <lower>,
                          so <lower> cannot itself contain a ":"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		be, err := buildBackend(args[1])
		if err != nil {
			fail(cmd, rid, err)
		}
		if err := vfs.Mount(args[0], be); err != nil {
			fail(cmd, rid, err)
		}
		log.WithField("request", rid).Infof("mounted %s at %s", args[1], args[0])
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount <prefix>",
	Short: "Unmount the backend mounted at prefix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		if err := vfs.Unmount(args[0]); err != nil {
			fail(cmd, rid, err)
		}
		log.WithField("request", rid).Infof("unmounted %s", args[0])
	},
}

// buildBackend parses one backend spec, recursively for overlayfs, and
// constructs the corresponding vfs.Backend.
func buildBackend(spec string) (vfs.Backend, error) {
	kind, rest, _ := strings.Cut(spec, ":")
	switch kind {
	case "memfs":
		return memfs.New(memfs.Options{}), nil
	case "nullfs":
		return nullfs.New(), nil
	case "randomfs":
		return randomfs.New(), nil
	case "localfs":
		if rest == "" {
			return nil, fmt.Errorf("localfs requires a host directory: localfs:<dir>")
		}
		return localfs.New(rest)
	case "overlayfs":
		lowerSpec, upperSpec, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("overlayfs requires two specs: overlayfs:<lower>:<upper>")
		}
		lower, err := buildBackend(lowerSpec)
		if err != nil {
			return nil, err
		}
		upper, err := buildBackend(upperSpec)
		if err != nil {
			return nil, err
		}
		return overlayfs.New(lower, upper), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}
