package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mantonx/streamgate/internal/config"
	"github.com/mantonx/streamgate/internal/logger"
	"github.com/mantonx/streamgate/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

func runServe(parent context.Context, watch bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Named("serve")
	cfg := config.Get()

	srv, err := server.New(server.Options{Config: cfg})
	if err != nil {
		return err
	}

	config.AddWatcher(func(oldConfig, newConfig *config.Config) {
		if oldConfig.Logging != newConfig.Logging {
			logger.Configure(newConfig.Logging.Level, newConfig.Logging.Format)
		}
		if err := srv.Reload(newConfig); err != nil {
			logger.Named("serve").Warn("module reload failed", "error", err)
		}
	})

	if watch && config.GetConfigManager().ConfigPath() != "" {
		watcher, err := config.NewFileWatcher(config.GetConfigManager(), log.Named("config"))
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown finished with errors", "error", err)
	}
	<-errCh
	log.Info("server shutdown complete")
	return nil
}
