// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/content-engine/internal/api"
)

// shutdownTimeout bounds the graceful drain of requests and cycles.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the image scheduler",
	Long: `Serve exposes content generation, the image library, pattern detection
and scheduler control over HTTP. The scheduler starts with the server when
scheduler.autostart is set; otherwise start it with POST /api/orchestrator/start.

On SIGINT or SIGTERM the server stops accepting requests, stops the
scheduler and waits for an in-flight cycle to finish.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("autostart", false, "start the scheduler with the server")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cmd.Flags().Changed("autostart") {
		cfg.Scheduler.Autostart, _ = cmd.Flags().GetBool("autostart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := a.newScheduler()
	if err := sched.Load(ctx); err != nil {
		return err
	}
	if cfg.Scheduler.Autostart {
		sched.Start(ctx)
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Content:      a.pipeline,
		Images:       a.images,
		Library:      a.store,
		Orchestrator: sched,
		Detector:     a.detector,
		Usage:        a.usage,
		Metrics:      a.metrics,
		Logger:       logger,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("http shutdown failed", zap.Error(serr))
	}
	if serr := sched.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("scheduler shutdown incomplete", zap.Error(serr))
	}
	return err
}
