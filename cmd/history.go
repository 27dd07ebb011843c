package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/photocull/journal"
)

var (
	historyLimit int
	historyAll   bool
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [folder]",
	Short: "List recorded edit/bin actions, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		initLogging(cfg, false)

		folder := ""
		if !historyAll {
			folder, err = filepath.Abs(folderArg(args))
			if err != nil {
				return fmt.Errorf("resolve folder: %w", err)
			}
		}

		db, err := journal.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		store := journal.NewStore(db)

		actions, err := store.List(folder, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(actions)
		}
		if len(actions) == 0 {
			fmt.Fprintln(out, "No actions recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTION\tNAME\tFOLDER")
		for _, a := range actions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.At.Local().Format("2006-01-02 15:04:05"), a.Kind, a.Name, a.Folder)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum actions to show (0 for all)")
	historyCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "show actions for every folder")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output JSON")
	rootCmd.AddCommand(historyCmd)
}
