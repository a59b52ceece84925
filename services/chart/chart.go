// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chart turns tabular results into renderable chart specs. The
// gateway emits declarative JSON spec files rather than rasterized images;
// the frontend renders them.
package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// Renderer is the chart capability the router depends on: a table plus
// axis columns in, an opaque chart reference out.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Renderer interface {
	// Render materializes a chart spec and returns its reference.
	Render(ctx context.Context, table *datatypes.Table, x, y, kind, title string) (string, error)
}

// Default series color palette.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// =============================================================================
// Spec Types
// =============================================================================

// Spec is the declarative chart description written to disk.
type Spec struct {
	ChartType  string   `json:"chartType"`
	Title      string   `json:"title"`
	XAxis      string   `json:"xAxis,omitempty"`
	YAxis      string   `json:"yAxis,omitempty"`
	Series     []Series `json:"series"`
	Colors     []string `json:"colors,omitempty"`
	ShowLegend bool     `json:"showLegend"`
	ShowGrid   bool     `json:"showGrid"`
}

// Series is one data series in a chart.
type Series struct {
	Name  string  `json:"name"`
	Data  []Point `json:"data"`
	Color string  `json:"color,omitempty"`
}

// Point is a single labeled value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// =============================================================================
// Spec Builder
// =============================================================================

// BuildSpec converts a table into a Spec using column x for labels and
// column y for values. Returns nil when either column is missing or no row
// yields a numeric value.
func BuildSpec(table *datatypes.Table, x, y, kind, title string) *Spec {
	if table == nil {
		return nil
	}
	xi, yi := columnIndex(table, x), columnIndex(table, y)
	if xi < 0 || yi < 0 {
		return nil
	}
	if kind == "" {
		kind = "bar"
	}

	points := make([]Point, 0, len(table.Rows))
	for _, row := range table.Rows {
		if xi >= len(row) || yi >= len(row) {
			continue
		}
		value, ok := numeric(row[yi])
		if !ok {
			continue
		}
		points = append(points, Point{Label: cellLabel(row[xi]), Value: value})
	}
	if len(points) == 0 {
		return nil
	}

	if title == "" {
		title = fmt.Sprintf("%s by %s", y, x)
	}
	return &Spec{
		ChartType:  kind,
		Title:      title,
		XAxis:      x,
		YAxis:      y,
		Series:     []Series{{Name: y, Data: points, Color: defaultColors[0]}},
		Colors:     defaultColors[:1],
		ShowLegend: true,
		ShowGrid:   kind != "pie",
	}
}

func columnIndex(table *datatypes.Table, name string) int {
	for i, c := range table.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func cellLabel(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// =============================================================================
// File Renderer
// =============================================================================

// FileRenderer implements Renderer by writing JSON spec files into a
// directory. References are "<uuid>.json" file names, never full paths, so
// they stay opaque to clients.
//
// # Thread Safety
//
// Safe for concurrent use. Each render writes a distinct file.
type FileRenderer struct {
	dir    string
	logger *slog.Logger
}

// NewFileRenderer creates the output directory if needed. logger may be nil.
func NewFileRenderer(dir string, logger *slog.Logger) (*FileRenderer, error) {
	if dir == "" {
		dir = "./charts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chart: create dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRenderer{dir: dir, logger: logger}, nil
}

// Render implements Renderer.
func (r *FileRenderer) Render(ctx context.Context, table *datatypes.Table, x, y, kind, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	spec := BuildSpec(table, x, y, kind, title)
	if spec == nil {
		return "", fmt.Errorf("chart: table has no plottable %s/%s columns", x, y)
	}

	raw, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("chart: marshal spec: %w", err)
	}

	ref := "chart_" + uuid.NewString() + ".json"
	if err := os.WriteFile(filepath.Join(r.dir, ref), raw, 0o644); err != nil {
		return "", fmt.Errorf("chart: write spec: %w", err)
	}

	r.logger.Debug("chart rendered",
		slog.String("ref", ref),
		slog.String("kind", spec.ChartType),
		slog.Int("points", len(spec.Series[0].Data)),
	)
	return ref, nil
}

var _ Renderer = (*FileRenderer)(nil)
