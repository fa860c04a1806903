// Command mpirun launches N worker processes of a program against a
// shared shmmpi world, the way a real MPI launcher spawns one process
// per rank and hands each its rank over the environment instead of a
// wire-level bootstrap handshake.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mpirun",
		Short: "launch a shmmpi program across N ranks",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newRankInfoCmd())
	return root
}
