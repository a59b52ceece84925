// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the gateway's YAML configuration. Secrets (API keys)
// come from the environment, never from the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration.
type Config struct {
	// Listen is the HTTP bind address, e.g. ":8001".
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Warehouse  WarehouseConfig  `yaml:"warehouse"`
	Cache      CacheConfig      `yaml:"cache"`
	Session    SessionConfig    `yaml:"session"`
	Charts     ChartsConfig     `yaml:"charts"`
}

// LLMConfig configures the chat model endpoint. The API key is read from
// DATACHAT_LLM_API_KEY.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig configures the embedding endpoint.
type EmbeddingsConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// QdrantConfig configures the vector store. The API key is read from
// DATACHAT_QDRANT_API_KEY.
type QdrantConfig struct {
	URL string `yaml:"url"`

	// Collections maps source names ("financial", "devices") to collection
	// names. Missing entries default to "docs_<source>".
	Collections map[string]string `yaml:"collections"`
}

// WarehouseConfig configures the analytical SQL engine.
type WarehouseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`

	// Dir, when non-empty, enables the persistent BadgerDB backend.
	Dir string `yaml:"dir"`
}

// SessionConfig selects the session store driver.
type SessionConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `yaml:"backend"`

	// RedisAddr is required when Backend is "redis".
	RedisAddr string `yaml:"redis_addr"`
}

// ChartsConfig configures chart spec output.
type ChartsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":8001",
		LogLevel: "info",
		LLM: LLMConfig{
			BaseURL:     "http://localhost:8000/v1/chat/completions",
			Model:       "qwen2.5-7b-instruct",
			Temperature: -1,
			Timeout:     120 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			URL:   "http://localhost:11434/api/embed",
			Model: "nomic-embed-text",
		},
		Qdrant: QdrantConfig{
			URL: "http://localhost:6334",
		},
		Warehouse: WarehouseConfig{Path: "./data/warehouse.db"},
		Cache: CacheConfig{
			TTL:        time.Hour,
			MaxEntries: 1000,
		},
		Session: SessionConfig{Backend: "memory"},
		Charts:  ChartsConfig{Dir: "./charts"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LLMAPIKey returns the chat model API key from the environment.
func LLMAPIKey() string {
	return os.Getenv("DATACHAT_LLM_API_KEY")
}

// QdrantAPIKey returns the vector store API key from the environment.
func QdrantAPIKey() string {
	return os.Getenv("DATACHAT_QDRANT_API_KEY")
}
