// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPlan/services/planner/domain"
	"github.com/AleutianAI/AleutianPlan/services/planner/server"
	"github.com/AleutianAI/AleutianPlan/services/planner/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the planner over HTTP",
	Long: `Starts the planner HTTP service. The domain comes from the configured
domain file and can be hot reloaded when the file changes on disk.

Endpoints:

  POST /v1/plan     - build and return a linearized plan
  POST /v1/execute  - plan and execute, returning the action trace
  GET  /healthz     - liveness
  GET  /readyz      - readiness (domain loaded)
  GET  /metrics     - Prometheus metrics (when enabled)`,
	RunE: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	logger, err := newLogger("planner-server")
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	provider := server.NewDomainProvider(domain.NewLoader(logger.Slog()), cfg.Server.DomainPath, logger.Slog())
	if cfg.Server.DomainPath != "" {
		if err := provider.Reload(); err != nil {
			return fmt.Errorf("loading domain: %w", err)
		}
	} else {
		logger.Warn("no domain file configured, /v1 endpoints report 503 until one is loaded")
	}

	srv := server.New(cfg, provider, logger.Slog())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if cfg.Server.WatchDomain && cfg.Server.DomainPath != "" {
		g.Go(func() error {
			return provider.Watch(ctx)
		})
	}

	return g.Wait()
}
