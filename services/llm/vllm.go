// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the chat model collaborator: a minimal client for an
// OpenAI-compatible chat completions endpoint (vLLM in the reference
// deployment). The gateway performs no inference itself; it only sends
// role/content messages and reads back text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var chatLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "datachat",
	Subsystem: "llm",
	Name:      "chat_latency_seconds",
	Help:      "Latency of chat completion calls by outcome",
	Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
}, []string{"outcome"})

// =============================================================================
// OTel Tracer
// =============================================================================

var chatTracer = otel.Tracer("aleutian.datachat.llm")

// =============================================================================
// Interface
// =============================================================================

// ChatClient is the narrow chat capability the router depends on.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	Chat(ctx context.Context, messages []datatypes.Message) (string, error)
}

// =============================================================================
// Wire Types
// =============================================================================

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []datatypes.Message `json:"messages"`
	Temperature *float32            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int               `json:"index"`
	Message      datatypes.Message `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client
// =============================================================================

// Config holds VLLMClient settings.
type Config struct {
	// BaseURL is the full chat completions URL, e.g.
	// "http://vllm:8000/v1/chat/completions".
	BaseURL string

	// Model is the model identifier sent with every request.
	Model string

	// APIKey is optional; sent as a Bearer token when non-empty.
	APIKey string

	// Temperature < 0 omits the field and uses the server default.
	Temperature float32

	// MaxTokens <= 0 omits the field.
	MaxTokens int

	// Timeout bounds each HTTP call. Zero uses 120s.
	Timeout time.Duration
}

// VLLMClient implements ChatClient against an OpenAI-compatible endpoint
// using raw net/http — no SDK dependency for a single POST route.
//
// # Thread Safety
//
// Safe for concurrent use.
type VLLMClient struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewVLLMClient creates a VLLMClient. logger may be nil.
func NewVLLMClient(cfg Config, logger *slog.Logger) *VLLMClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VLLMClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// Chat implements ChatClient.
func (c *VLLMClient) Chat(ctx context.Context, messages []datatypes.Message) (string, error) {
	ctx, span := chatTracer.Start(ctx, "llm.VLLMClient.Chat",
		oteltrace.WithAttributes(
			attribute.String("model", c.cfg.Model),
			attribute.Int("message_count", len(messages)),
		),
	)
	defer span.End()

	reqBody := chatRequest{Model: c.cfg.Model, Messages: messages}
	if c.cfg.Temperature >= 0 {
		t := c.cfg.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.MaxTokens > 0 {
		m := c.cfg.MaxTokens
		reqBody.MaxTokens = &m
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		chatLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("llm: chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		chatLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("llm: chat endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		chatLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		chatLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Error != nil {
		err := fmt.Errorf("llm: %s: %s", parsed.Error.Type, parsed.Error.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		chatLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", err
	}
	if len(parsed.Choices) == 0 {
		chatLatency.WithLabelValues("empty").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("llm: empty choices in response")
	}

	chatLatency.WithLabelValues("success").Observe(time.Since(start).Seconds())
	c.logger.Debug("chat completion",
		slog.Int("message_count", len(messages)),
		slog.Duration("latency", time.Since(start)),
	)
	return parsed.Choices[0].Message.Content, nil
}

// Health verifies the endpoint answers a minimal completion. Used by the
// readiness probe; failures are reported, never retried here.
func (c *VLLMClient) Health(ctx context.Context) error {
	_, err := c.Chat(ctx, []datatypes.Message{
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
