// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

var searchTracer = otel.Tracer("aleutian.datachat.vectorstore")

// QdrantConfig holds connection settings for the Qdrant search backend.
type QdrantConfig struct {
	// URL is the Qdrant server address (e.g. "http://qdrant:6334").
	URL string

	// APIKey is optional.
	APIKey string

	// Collections maps sources to collection names. Sources without an
	// entry fall back to "docs_<source>".
	Collections map[datatypes.Source]string
}

// QdrantSearcher implements Searcher over per-source Qdrant collections.
//
// # Thread Safety
//
// Safe for concurrent use.
type QdrantSearcher struct {
	client      *qdrant.Client
	embedder    Embedder
	collections map[datatypes.Source]string
	logger      *slog.Logger
}

// NewQdrantSearcher creates a QdrantSearcher. embedder must not be nil;
// logger may be nil.
func NewQdrantSearcher(cfg QdrantConfig, embedder Embedder, logger *slog.Logger) (*QdrantSearcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("vectorstore: qdrant url is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	host, port, useTLS, err := splitQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}

	return &QdrantSearcher{
		client:      client,
		embedder:    embedder,
		collections: cfg.Collections,
		logger:      logger,
	}, nil
}

// Search implements Searcher.
func (s *QdrantSearcher) Search(ctx context.Context, source datatypes.Source, query string, topK int) ([]datatypes.SearchHit, error) {
	ctx, span := searchTracer.Start(ctx, "vectorstore.QdrantSearcher.Search",
		oteltrace.WithAttributes(
			attribute.String("source", string(source)),
			attribute.Int("top_k", topK),
		),
	)
	defer span.End()

	if topK <= 0 {
		topK = 6
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vectorstore: embedder returned no vector")
	}

	limit := uint64(topK)
	start := time.Now()
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionFor(source),
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("vectorstore: qdrant query failed: %w", err)
	}

	hits := make([]datatypes.SearchHit, 0, len(points))
	for _, point := range points {
		hit := datatypes.SearchHit{
			Score:   point.Score,
			Payload: make(map[string]any, len(point.Payload)),
		}
		for k, v := range point.Payload {
			hit.Payload[k] = payloadValue(v)
		}
		hits = append(hits, hit)
	}

	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	s.logger.Debug("vector search",
		slog.String("source", string(source)),
		slog.Int("hits", len(hits)),
		slog.Duration("latency", time.Since(start)),
	)
	return hits, nil
}

// Health verifies the Qdrant connection by listing collections.
func (s *QdrantSearcher) Health(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("vectorstore health: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}

func (s *QdrantSearcher) collectionFor(source datatypes.Source) string {
	if name, ok := s.collections[source]; ok && name != "" {
		return name
	}
	return "docs_" + string(source)
}

// splitQdrantURL extracts host, gRPC port, and TLS mode from a URL-ish
// address. Bare "host:port" is accepted; the default port is 6334.
func splitQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	parsed := raw
	if !strings.HasPrefix(parsed, "http://") && !strings.HasPrefix(parsed, "https://") {
		parsed = "http://" + parsed
	}

	u, err := url.Parse(parsed)
	if err != nil {
		return "", 0, false, fmt.Errorf("vectorstore: parse qdrant url: %w", err)
	}

	host = u.Hostname()
	port = 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("vectorstore: invalid qdrant port: %w", err)
		}
		port = p
	}
	return host, port, u.Scheme == "https", nil
}

// payloadValue converts a Qdrant payload value into a plain Go value.
func payloadValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}

var _ Searcher = (*QdrantSearcher)(nil)
