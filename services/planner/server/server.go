// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the planner over HTTP.
//
// The API is a thin layer over the planning packages: requests carry a
// world state and a todo list, the domain comes from a DomainProvider
// that can hot reload from disk, and responses carry linearized plans
// or execution reports.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianPlan/services/planner/config"
	"github.com/AleutianAI/AleutianPlan/services/planner/htn"
	"github.com/AleutianAI/AleutianPlan/services/planner/telemetry"
)

// Server is the planner HTTP service.
//
// Thread Safety: Safe for concurrent requests. The domain provider
// serializes reloads; handlers read an immutable registry snapshot.
type Server struct {
	cfg      config.Config
	provider *DomainProvider
	logger   *slog.Logger
	opts     *htn.Options
	engine   *gin.Engine
}

// New creates a server around the given domain provider.
//
// Inputs:
//
//	cfg - Service configuration (listen address, timeouts, planner limits).
//	provider - Domain source. Must not be nil.
//	logger - Structured logger. Nil falls back to slog.Default().
//
// Outputs:
//
//	*Server: Ready to Run. Routes are registered eagerly.
func New(cfg config.Config, provider *DomainProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		opts:     cfg.PlannerOptions(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	engine.GET("/healthz", s.HandleHealth)
	engine.GET("/readyz", s.HandleReady)
	if handler := telemetry.MetricsHandler(); handler != nil {
		engine.GET("/metrics", gin.WrapH(handler))
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/plan", s.HandlePlan)
		v1.POST("/execute", s.HandleExecute)
	}

	s.engine = engine
	return s
}

// Router returns the underlying gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
//
// Outputs:
//
//	error - Non-nil on listen failure or a shutdown that exceeded its
//	  deadline. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("planner server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("planner server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
