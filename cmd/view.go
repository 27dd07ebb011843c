package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view [folder]",
	Short: "Browse a folder in the terminal",
	Long: `Shows the images of a folder as half-block art. Keys:

  →  l  n  space   next image
  ←  h  p          previous image
  r                reload from disk
  e                copy to edit/
  d  x  delete     move to bin/
  q                quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		initLogging(cfg, true)

		s, cleanup, err := openSession(cfg, folderArg(args))
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if cfg.Watch {
			go func() {
				if err := s.Run(ctx); err != nil {
					logging.Sub("cmd").Warn("folder watch stopped", "err", err)
				}
			}()
		}
		return tui.Run(s)
	},
}

func init() {
	viewCmd.Flags().Bool("no-watch", false, "do not reload images changed on disk")
	rootCmd.AddCommand(viewCmd)
}
