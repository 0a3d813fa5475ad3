package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zhuweiyou/rttiscanner"
)

func init() {
	rootCmd.AddCommand(psCmd)
}

// psCmd represents the ps command
var psCmd = &cobra.Command{
	Use:   "ps <NAME>",
	Short: "List the IDs of processes with the given executable name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pids, err := rttiscanner.FindProcessesByName(args[0])
		if err != nil {
			return err
		}
		for _, pid := range pids {
			fmt.Println(pid)
		}
		return nil
	},
}
