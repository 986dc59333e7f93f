// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianPlan/services/planner/domain"
)

// ErrNoDomain indicates the provider holds no loaded domain yet.
var ErrNoDomain = errors.New("server: no domain loaded")

// DomainProvider holds the registry served by the planning API and hot
// swaps it when the domain file changes on disk.
//
// # Thread Safety
//
// Safe for concurrent use. Readers get a consistent registry snapshot;
// a reload swaps the pointer atomically and never mutates a registry
// already handed out.
type DomainProvider struct {
	loader  *domain.Loader
	path    string
	logger  *slog.Logger
	current atomic.Pointer[domain.Registry]
}

// NewDomainProvider creates a provider for the given domain file.
//
// The file is not read until Reload is called. A nil logger falls back
// to slog.Default().
func NewDomainProvider(loader *domain.Loader, path string, logger *slog.Logger) *DomainProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &DomainProvider{
		loader: loader,
		path:   path,
		logger: logger,
	}
}

// Set installs a registry directly, bypassing the file loader.
//
// Used by embedders that build domains in code and by tests.
func (p *DomainProvider) Set(reg *domain.Registry) {
	p.current.Store(reg)
}

// Current returns the active registry.
//
// Outputs:
//
//	*domain.Registry - The registry, or nil before the first successful
//	  Reload or Set.
func (p *DomainProvider) Current() *domain.Registry {
	return p.current.Load()
}

// Reload reads and compiles the domain file, swapping it in on success.
//
// On failure the previous registry stays active, so a bad edit to the
// domain file degrades nothing.
func (p *DomainProvider) Reload() error {
	if p.path == "" {
		return ErrNoDomain
	}
	reg, err := p.loader.LoadDomain(p.path)
	if err != nil {
		return err
	}
	p.current.Store(reg)
	p.logger.Info("domain loaded",
		slog.String("path", p.path),
		slog.Int("actions", len(reg.ActionNames())),
		slog.Int("tasks", len(reg.TaskNames())))
	return nil
}

// Watch reloads the domain whenever its file is written.
//
// Description:
//
//	Watches the domain file's directory (editors often replace files
//	rather than writing in place, which drops a watch on the file
//	itself) and reloads on writes, creates, and renames of the domain
//	file. Blocks until the context is cancelled. Run in a goroutine.
//
// Inputs:
//
//	ctx - Context for cancellation.
//
// Outputs:
//
//	error - Non-nil if the watcher cannot be created or attached.
func (p *DomainProvider) Watch(ctx context.Context) error {
	if p.path == "" {
		return ErrNoDomain
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(p.path)

	p.logger.Debug("watching domain file", slog.String("path", target))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := p.Reload(); err != nil {
				p.logger.Warn("domain reload failed, keeping previous",
					slog.String("path", target),
					slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("domain watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			p.logger.Debug("domain watcher stopping")
			return nil
		}
	}
}
