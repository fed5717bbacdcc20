package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fizzworks/fountd"
)

// createServeCommand creates the serve subcommand.
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the fountd supervisor",
		Long: `Start the fountd HTTP service. All configuration is loaded from the
TOML config file.

Examples:
  fountd serve                  # uses --config (default fountd.toml)
  fountd serve fountd.toml      # start with a specific config file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			return runServe(configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := fountd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	svc, err := fountd.New(cfg)
	if err != nil {
		return err
	}
	logger := svc.Logger()

	svc.Start()
	httpSrv := svc.Serve()
	logger.Info("fountd listening", "addr", cfg.Server.Listen, "controller", cfg.Controller.Address, "mode", cfg.Controller.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	return svc.Close()
}
