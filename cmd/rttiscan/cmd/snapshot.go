package cmd

import (
	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zhuweiyou/rttiscanner"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringP("output", "o", "", "File to write the image to (default: MODULE.bin)")
	snapshotCmd.MarkFlagFilename("output")

	viper.BindPFlag("snapshot.output", snapshotCmd.Flags().Lookup("output"))
}

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot <MODULE>",
	Short: "Save a copy of a loaded module for offline dumps",
	Example: `  rttiscan snapshot -n game.exe game.exe -o game.bin
  rttiscan dump -i game.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget()
		if err != nil {
			return err
		}
		defer t.Close()

		mod, err := t.FindModule(args[0])
		if err != nil {
			return err
		}

		img, failed, err := rttiscanner.Snapshot(t, mod)
		if err != nil {
			return err
		}
		if failed > 0 {
			log.Warnf("%d pages could not be read and were zeroed", failed)
		}

		out := viper.GetString("snapshot.output")
		if out == "" {
			out = mod.Name + ".bin"
		}
		if err := img.Save(out); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"module": mod.Name,
			"base":   mod.Base,
			"size":   humanize.Bytes(mod.Size),
			"path":   out,
		}).Info("Saved snapshot")

		return nil
	},
}
