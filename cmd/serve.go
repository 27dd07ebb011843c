package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/viewer"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [folder]",
	Short: "Serve a folder over HTTP for a browser front-end",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		initLogging(cfg, false)
		l := logging.Sub("serve")

		s, cleanup, err := openSession(cfg, folderArg(args))
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Watch {
			go func() {
				if err := s.Run(ctx); err != nil {
					l.Warn("folder watch stopped", "err", err)
				}
			}()
		}

		handlers := viewer.NewHandlers(s)
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           handlers.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		srv.RegisterOnShutdown(handlers.Close)
		errCh := make(chan error, 1)
		go func() {
			l.Info("listening", "addr", cfg.Listen, "folder", s.Folder())
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		l.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (default 127.0.0.1:8080)")
	serveCmd.Flags().Bool("no-watch", false, "do not reload images changed on disk")
	rootCmd.AddCommand(serveCmd)
}
