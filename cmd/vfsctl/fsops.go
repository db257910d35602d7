package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rclone/vfslib"
)

func init() {
	root.AddCommand(lsCmd)
	root.AddCommand(statCmd)
	root.AddCommand(catCmd)
	root.AddCommand(writeCmd)
	root.AddCommand(mkdirCmd)
	root.AddCommand(rmCmd)
}

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List a directory through the Visitor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		visitor := vfs.VisitorHandle()
		err := visitor.Ls(args[0], func(name string, st vfs.Stat) bool {
			kind := "-"
			if st.Mode.IsDir() {
				kind = "d"
			}
			fmt.Printf("%s %10d %s\n", kind, st.Size, name)
			return true
		})
		if err != nil {
			fail(cmd, rid, err)
		}
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Stat a path through the Visitor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		visitor := vfs.VisitorHandle()
		st, err := visitor.Stat(args[0])
		if err != nil {
			fail(cmd, rid, err)
		}
		fmt.Printf("mode=%#x size=%d mtime=%s\n", st.Mode, st.Size, st.ModTime)
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's contents through the Visitor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		visitor := vfs.VisitorHandle()
		fh, err := visitor.Open(args[0], vfs.RDONLY)
		if err != nil {
			fail(cmd, rid, err)
		}
		defer visitor.Close(fh)

		buf := make([]byte, 64*1024)
		for {
			n, err := visitor.Read(fh, buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil {
				if err == io.EOF {
					return
				}
				fail(cmd, rid, err)
			}
		}
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path> <text>",
	Short: "Write text to a path through the Visitor, creating it if needed",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		visitor := vfs.VisitorHandle()
		fh, err := visitor.Open(args[0], vfs.WRONLY|vfs.CREATE|vfs.TRUNCATE)
		if err != nil {
			fail(cmd, rid, err)
		}
		defer visitor.Close(fh)

		data := []byte(args[1])
		for len(data) > 0 {
			n, err := visitor.Write(fh, data)
			if err != nil {
				fail(cmd, rid, err)
			}
			data = data[n:]
		}
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory through the Visitor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		if err := vfs.VisitorHandle().Mkdir(args[0]); err != nil {
			fail(cmd, rid, err)
		}
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file or empty directory through the Visitor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rid := requestID()
		if err := vfs.Rm(args[0]); err != nil {
			fail(cmd, rid, err)
		}
	},
}
