package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/logging"
	"github.com/jra3/sprintdash/internal/server"
	"github.com/jra3/sprintdash/internal/sync"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard as a JSON API",
	Long: `Serve the dashboard over HTTP. With server.refresh_interval set, the cache is
refreshed in the background at that interval.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, 10*time.Minute)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.RefreshInterval > 0 {
		worker := sync.NewWorker(a.dash, sync.Config{Interval: cfg.Server.RefreshInterval, Logger: log})
		worker.Start(ctx)
		defer worker.Stop()
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.Serve(ctx, addr, &server.Handler{Dash: a.dash, Log: log})
}
