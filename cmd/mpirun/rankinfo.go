package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/behrlich/shmmpi/internal/launch"
)

func newRankInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank-info",
		Short: "print the launch environment this process was spawned with",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := launch.FromEnv()
			if !info.Launched {
				fmt.Fprintln(cmd.OutOrStdout(), "not launched: SHMMPI_LAUNCHED is unset")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rank=%d size=%d shmkey=%d\n", info.Rank, info.Size, info.ShmKey)
			return nil
		},
	}
}
