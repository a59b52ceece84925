// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datachat is the HTTP surface of the conversational analytics
// gateway: gin routes, request handlers, and the service wiring that binds
// the router orchestrator to its stores.
package datachat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/datachat/services/datachat/querycache"
	"github.com/AleutianAI/datachat/services/datachat/router"
	"github.com/AleutianAI/datachat/services/datachat/session"
)

// HealthCheck probes one downstream collaborator.
type HealthCheck func(ctx context.Context) error

// healthCheckTimeout bounds each individual probe during /health and
// /ready.
const healthCheckTimeout = 5 * time.Second

// Service bundles the orchestrator with the stores the auxiliary endpoints
// (stats, history, health) read directly.
//
// # Thread Safety
//
// Safe for concurrent use; all fields are themselves concurrency-safe and
// set once at construction.
type Service struct {
	router   *router.Router
	sessions session.Store
	cache    *querycache.Learner
	checks   map[string]HealthCheck
	logger   *slog.Logger
}

// NewService creates a Service. checks maps component names ("llm",
// "vectorstore", "sqlstore") to their probes and may be empty; logger may
// be nil.
func NewService(r *router.Router, sessions session.Store, cache *querycache.Learner, checks map[string]HealthCheck, logger *slog.Logger) *Service {
	if r == nil || sessions == nil || cache == nil {
		panic("datachat.NewService: missing required component")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		router:   r,
		sessions: sessions,
		cache:    cache,
		checks:   checks,
		logger:   logger,
	}
}

// checkAll probes every registered component in parallel and returns a
// per-component status map plus overall health. Probe failures are
// reported, never retried.
func (s *Service) checkAll(ctx context.Context) (map[string]string, bool) {
	statuses := make(map[string]string, len(s.checks))
	healthy := true

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, len(s.checks))

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, healthCheckTimeout)
			defer cancel()
			results <- outcome{name: name, err: check(cctx)}
			return nil
		})
	}
	g.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			statuses[res.name] = "unavailable: " + res.err.Error()
			healthy = false
			s.logger.Warn("health check failed",
				slog.String("component", res.name),
				slog.String("error", res.err.Error()),
			)
			continue
		}
		statuses[res.name] = "ok"
	}
	return statuses, healthy
}
