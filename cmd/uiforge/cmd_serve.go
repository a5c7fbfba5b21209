package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uiforge/internal/config"
	"uiforge/internal/logging"
	"uiforge/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the HTTP front end:
  POST /api/chat/            run the pipeline ({content, optimize, file})
  GET  /api/artifacts/{id}   published UI documents
  GET  /api/logs             live log stream (Server-Sent Events)

The configuration file is watched; log level changes apply without restart.`,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv, err := server.New(server.Config{
		Addr:              addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
		ShutdownTimeout:   cfg.GetShutdownTimeout(),
		OptimizeDefault:   cfg.Pipeline.Optimize,
	}, a.pipeline,
		server.WithArtifacts(a.artifacts),
		server.WithTraces(a.traces),
		server.WithLogger(logger.Named("http")),
	)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(configPath); statErr == nil {
		watcher, err := config.NewWatcher(configPath, config.ApplyLogging)
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	logger.Info("Starting server", zap.String("addr", addr), zap.String("model", a.client.GetModel()))
	logging.Boot("uiforge %s serving on %s", version, addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return srv.Stop()
	})
	return g.Wait()
}
