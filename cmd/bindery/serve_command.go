package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bindery/internal/ocr"
	"bindery/internal/pipeline"
	"bindery/internal/progress"
	"bindery/internal/queue"
	"bindery/internal/server"
	"bindery/internal/watcher"
	"bindery/internal/worker"
)

// newServeCommand runs the long-lived daemon: queue worker, HTTP API,
// progress hub and the optional inbox watcher.
func newServeCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worker daemon and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cliCtx.ensureLogger()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := ocr.SelectEngine(cfg.OCR.Engine)
			runner := pipeline.NewRunner(engine, cfg.OCRTimeout(), logger)
			w := worker.New(store, runner, cfg, logger)
			hub := progress.NewHub(store, cfg, logger)

			srv := server.New(cfg, store, w, hub, logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer srv.Stop()

			var inbox *watcher.Watcher
			if cfg.Watcher.Enabled {
				inbox = watcher.New(store, cfg, logger)
				if err := inbox.Start(ctx); err != nil {
					return err
				}
				defer inbox.Stop()
			}

			if err := w.Run(ctx, 0); err != nil {
				return err
			}
			logger.Info("bindery shutting down")
			return nil
		},
	}
}
