// Package cmd holds the photocull command line.
package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ghyeongl/photocull/config"
	"github.com/ghyeongl/photocull/decode"
	"github.com/ghyeongl/photocull/journal"
	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/viewer"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "photocull",
	Short: "Cull a folder of photos one image at a time",
	Long: `photocull shows the images of a folder one at a time, keeping the
neighbours of the current image decoded so stepping through is instant.

Keep an image by copying it to edit/, or reject it by moving it (and its RAW
sidecar) to bin/.

Examples:
  photocull view ~/Pictures/2024-06-trip
  photocull serve --listen 127.0.0.1:8080 .
  photocull history --limit 20`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.photocull.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.IntP("capacity", "c", 0, "decoded images kept around the current one")
	pf.Int("workers", 0, "concurrent background decodes")
	pf.String("data-dir", "", "directory for the journal database")
	pf.String("log-dir", "", "write level-split log files into this directory")
	pf.String("log-level", "", "console log level (debug, info, warn, error)")
	pf.Bool("no-journal", false, "do not record edit/bin actions")
}

// flagKeys maps flag names onto config keys.
var flagKeys = map[string]string{
	"capacity":  "capacity",
	"workers":   "workers",
	"data-dir":  "data_dir",
	"log-dir":   "log_dir",
	"log-level": "log_level",
	"listen":    "listen",
}

// bindFlags binds every flag the user actually set to its config key, so
// unset flags never shadow the file or environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "no-journal":
			v.Set("journal", f.Value.String() != "true")
		case "no-watch":
			v.Set("watch", f.Value.String() != "true")
		default:
			if key, ok := flagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		}
	})
}

// loadConfig resolves the effective configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	bindFlags(v, cmd.Flags())
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
		if f := v.ConfigFileUsed(); f != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", f)
		}
	}
	return cfg, nil
}

func initLogging(cfg *config.Config, tui bool) {
	logging.Init(logging.Options{
		Dir:       cfg.LogDir,
		Level:     cfg.LogLevel,
		NoConsole: tui,
	})
}

// openSession opens the journal (when enabled) and a session over folder.
// The returned cleanup closes both.
func openSession(cfg *config.Config, folder string) (*viewer.Session, func(), error) {
	var (
		db    *sql.DB
		store *journal.Store
	)
	if cfg.Journal {
		var err error
		db, err = journal.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		store = journal.NewStore(db)
	}

	fsys := afero.NewOsFs()
	dec := decode.New(fsys, decode.Options{
		MaxWidth:   cfg.MaxWidth,
		MaxHeight:  cfg.MaxHeight,
		FailureTTL: cfg.FailureTTL,
	})
	s, err := viewer.Open(fsys, dec, viewer.Options{
		Folder:     folder,
		Capacity:   cfg.Capacity,
		Workers:    cfg.Workers,
		Extensions: cfg.Extensions,
		Sidecars:   cfg.Sidecars,
		Journal:    store,
	})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	return s, func() {
		s.Close()
		if db != nil {
			db.Close()
		}
	}, nil
}

func folderArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
