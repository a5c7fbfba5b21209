package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"uiforge/internal/config"
	"uiforge/internal/optimize"
	"uiforge/internal/perception"
	"uiforge/internal/pipeline"
	"uiforge/internal/retry"
	"uiforge/internal/store"
)

// app holds the wired components shared by run, serve and mcp.
type app struct {
	cfg       *config.Config
	client    perception.Client
	tracer    *perception.TracingClient
	db        *store.Store
	artifacts *store.ArtifactStore
	traces    *store.TraceStore
	pipeline  *pipeline.Pipeline
}

// newApp builds the completion client, store and pipeline from cfg. A
// missing model or key fails here, before any stage runs.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := perception.NewClientFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{
		cfg:       cfg,
		db:        db,
		artifacts: store.NewArtifactStore(db, cfg.Store.PublicBaseURL),
		traces:    store.NewTraceStore(db),
	}

	if cfg.Store.TraceCalls {
		a.tracer = perception.NewTracingClient(client, a.traces)
		client = a.tracer
	}
	a.client = client

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.GetMaxAttempts()
	policy.Delay = cfg.GetRetryDelay()

	a.pipeline = pipeline.New(
		pipeline.NewExecutor(client, policy),
		pipeline.WithRefiner(optimize.New(client)),
		pipeline.WithPublisher(a.artifacts),
	)

	if logger != nil {
		logger.Debug("components wired",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", client.GetModel()),
			zap.String("database", db.Path()),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("retry_delay", policy.Delay),
			zap.Bool("trace_calls", cfg.Store.TraceCalls),
		)
	}
	return a, nil
}

// Close flushes pending traces and closes the store.
func (a *app) Close() error {
	if a.tracer != nil {
		a.tracer.Flush()
	}
	return a.db.Close()
}
