package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/job-pricer/internal/server"
	"github.com/jonathan/job-pricer/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the pricing engine, recorded runs, health and metrics.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{record: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Params.Watch {
		go func() {
			if err := a.params.Watch(ctx); err != nil {
				a.log.Error("parameter watch stopped", zap.Error(err))
			}
		}()
	}

	port := a.cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	deps := server.Deps{
		Engine:  a.engine,
		Params:  a.params,
		Metrics: a.metrics,
		Logger:  a.log,
	}
	if a.db != nil {
		deps.Runs = a.db
		deps.Health = a.db
	}

	srv, err := server.New(server.Config{
		Port:             port,
		RateLimit:        ratelimit.PricingConfig(a.cfg.Server.RateLimitPerMin, a.cfg.Server.RateLimitBurst, a.cfg.Server.RateLimitWhitelist),
		BatchConcurrency: a.cfg.Server.BatchConcurrency,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
