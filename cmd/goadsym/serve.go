package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrpasztoradam/goadsym/gateway"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	Long: `Serve opens a session to the configured controller and exposes it over
HTTP, WebSocket and, when configured, MQTT. The server runs until
interrupted and shuts down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		cfg, err := gateway.LoadConfig(path)
		if err != nil {
			return err
		}

		srv, err := gateway.New(cfg, nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(ctx)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
