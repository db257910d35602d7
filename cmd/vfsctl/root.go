// Package main provides vfsctl, a command-line harness that exercises the
// singleton Context: each invocation runs exactly one subcommand (mount,
// unmount, ls, stat, cat, write, mkdir, rm) against a fresh Context that
// Init creates before the subcommand and Shutdown tears down after it.
// Mounts are not kept between invocations, so a mount made by one
// invocation is not visible to the ls/cat/write/... of the next. It is
// grounded on rclone's own command tree (cmd/cmd.go's
// root command plus each verb's own cobra.Command, as in
// backend/torrent/cmd) — one root command, independent subcommand files,
// each subcommand resolving shared state through a package-level
// Context rather than threading it through flags.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rclone/vfslib"
	"github.com/rclone/vfslib/internal/vfslog"
)

var log = vfslog.For("vfsctl")

var root = &cobra.Command{
	Use:   "vfsctl",
	Short: "Drive a vfslib Context from the command line",
	Long: `vfsctl runs one subcommand per invocation against a fresh vfslib.Context,
through its Visitor. The Context is shut down when the subcommand
returns: mounts made by "vfsctl mount" are not kept for later
invocations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return vfs.Init()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		vfs.Shutdown()
	},
}

// requestID tags one command invocation's log lines, the way a server
// would tag one request, so a user piping several vfsctl calls into one
// log stream can still tell invocations apart.
func requestID() string {
	return uuid.NewString()
}

func fail(cmd *cobra.Command, rid string, err error) {
	log.WithField("request", rid).Errorf("%s: %v", cmd.Name(), err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name(), err)
	os.Exit(1)
}

func main() {
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
