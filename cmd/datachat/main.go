// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command datachat starts the conversational analytics gateway.
//
// The gateway routes natural-language questions over two demo datasets
// (financial orders, device telemetry) to either SQL aggregation or
// retrieval-augmented answering, with response caching and passive pattern
// learning.
//
// Usage:
//
//	go run ./cmd/datachat
//	go run ./cmd/datachat -config config.yaml -port 8001
//	go run ./cmd/datachat -seed          # populate demo warehouse data
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8001/v1/chat/health
//
//	# Ask a question
//	curl -X POST http://localhost:8001/v1/chat/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "how many orders today", "source": "auto", "mode": "auto"}'
//
//	# Cache and session statistics
//	curl http://localhost:8001/v1/chat/stats | jq
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/datachat/services/chart"
	"github.com/AleutianAI/datachat/services/datachat"
	"github.com/AleutianAI/datachat/services/datachat/config"
	"github.com/AleutianAI/datachat/services/datachat/datatypes"
	"github.com/AleutianAI/datachat/services/datachat/querycache"
	"github.com/AleutianAI/datachat/services/datachat/router"
	"github.com/AleutianAI/datachat/services/datachat/session"
	"github.com/AleutianAI/datachat/services/llm"
	"github.com/AleutianAI/datachat/services/sqlstore"
	"github.com/AleutianAI/datachat/services/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	seed := flag.Bool("seed", false, "Seed the warehouse with demo data and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Listen = fmt.Sprintf(":%d", *port)
	}

	setupLogging(cfg.LogLevel, *debug)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from inbound
	// headers through every handler and downstream client call.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Warehouse.
	warehouse, err := sqlstore.New(cfg.Warehouse.Path, slog.Default())
	if err != nil {
		slog.Error("Failed to open warehouse", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer warehouse.Close()

	if *seed {
		if err := warehouse.Seed(context.Background(), 500, time.Now().UTC()); err != nil {
			slog.Error("Seeding failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("Demo data seeded, exiting")
		return
	}

	// Chat model client.
	chatClient := llm.NewVLLMClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      config.LLMAPIKey(),
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, slog.Default())

	// Retrieval: embedder + Qdrant.
	embedder := vectorstore.NewHTTPEmbedder(cfg.Embeddings.URL, cfg.Embeddings.Model, slog.Default())
	searcher, err := vectorstore.NewQdrantSearcher(vectorstore.QdrantConfig{
		URL:         cfg.Qdrant.URL,
		APIKey:      config.QdrantAPIKey(),
		Collections: sourceCollections(cfg.Qdrant.Collections),
	}, embedder, slog.Default())
	if err != nil {
		slog.Error("Failed to create vector search client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer searcher.Close()

	// Query cache, optionally persisted in BadgerDB. Graceful degradation:
	// if the cache directory is unusable, caching continues in memory only.
	var backend querycache.Backend
	var cacheDB *dgbadger.DB
	if cfg.Cache.Dir != "" {
		db, err := dgbadger.Open(dgbadger.DefaultOptions(cfg.Cache.Dir).WithLogger(nil))
		if err != nil {
			slog.Warn("Query cache BadgerDB unavailable, persistence disabled",
				slog.String("path", cfg.Cache.Dir),
				slog.String("error", err.Error()),
			)
		} else {
			cacheDB = db
			backend = querycache.NewBadgerBackend(db, cfg.Cache.TTL, slog.Default())
			slog.Info("Query cache BadgerDB opened", slog.String("path", cfg.Cache.Dir))
		}
	}
	cache := querycache.NewLearner(cfg.Cache.TTL, cfg.Cache.MaxEntries, backend, slog.Default())

	// Session store.
	sessions, err := newSessionStore(cfg.Session)
	if err != nil {
		slog.Error("Failed to create session store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Chart renderer.
	renderer, err := chart.NewFileRenderer(cfg.Charts.Dir, slog.Default())
	if err != nil {
		slog.Error("Failed to create chart renderer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orchestrator := router.New(router.Deps{
		Chat:     chatClient,
		Search:   searcher,
		SQL:      warehouse,
		Charts:   renderer,
		Sessions: sessions,
		Cache:    cache,
		Logger:   slog.Default(),
	})

	service := datachat.NewService(orchestrator, sessions, cache, map[string]datachat.HealthCheck{
		"llm":         chatClient.Health,
		"vectorstore": searcher.Health,
		"sqlstore":    warehouse.Health,
	}, slog.Default())
	handlers := datachat.NewHandlers(service)

	// HTTP router.
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("aleutian-datachat"))
	if *debug {
		engine.Use(gin.Logger())
	}

	v1 := engine.Group("/v1")
	datachat.RegisterRoutes(v1, handlers)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: engine,
	}

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down DataChat gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown failed", slog.String("error", err.Error()))
		}
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				slog.Warn("Failed to close query cache BadgerDB", slog.String("error", err.Error()))
			}
		}
	}()

	slog.Info("Starting DataChat gateway",
		slog.String("address", cfg.Listen),
		slog.String("warehouse", cfg.Warehouse.Path),
		slog.String("session_backend", cfg.Session.Backend),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string, debug bool) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// newSessionStore selects the session driver from config.
func newSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("session backend redis requires redis_addr")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return session.NewRedisStore(client, 0), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// sourceCollections converts the config's string-keyed collection map to
// the typed map the searcher expects.
func sourceCollections(raw map[string]string) map[datatypes.Source]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[datatypes.Source]string, len(raw))
	for k, v := range raw {
		out[datatypes.Source(k)] = v
	}
	return out
}
