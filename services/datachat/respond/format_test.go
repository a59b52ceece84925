// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package respond

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

func TestFormatTextSingleCell(t *testing.T) {
	tests := []struct {
		name  string
		table *datatypes.Table
		want  string
	}{
		{
			name:  "integer count",
			table: &datatypes.Table{Columns: []string{"order_count"}, Rows: [][]any{{int64(42)}}},
			want:  "Result: 42",
		},
		{
			name:  "currency column gets two decimals",
			table: &datatypes.Table{Columns: []string{"total_revenue"}, Rows: [][]any{{float64(1234.5)}}},
			want:  "Result: 1234.50",
		},
		{
			name:  "whole float on non-currency column drops decimals",
			table: &datatypes.Table{Columns: []string{"device_count"}, Rows: [][]any{{float64(7)}}},
			want:  "Result: 7",
		},
		{
			name:  "nil cell",
			table: &datatypes.Table{Columns: []string{"avg"}, Rows: [][]any{{nil}}},
			want:  "No data available.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatText(tt.table); got != tt.want {
				t.Errorf("FormatText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatTextEmpty(t *testing.T) {
	if got := FormatText(nil); got != NoDataText {
		t.Errorf("FormatText(nil) = %q", got)
	}
	empty := &datatypes.Table{Columns: []string{"a"}}
	if got := FormatText(empty); got != NoDataText {
		t.Errorf("FormatText(empty) = %q", got)
	}
}

func TestFormatTextSmallSet(t *testing.T) {
	table := &datatypes.Table{
		Columns: []string{"customer", "total_revenue"},
		Rows: [][]any{
			{"Acme LLC", float64(5000.5)},
			{"Globex", float64(1200)},
		},
	}
	got := FormatText(table)

	if !strings.HasPrefix(got, "Found 2 results:") {
		t.Errorf("missing count header: %q", got)
	}
	if !strings.Contains(got, "• customer: Acme LLC, total_revenue: 5000.50") {
		t.Errorf("missing first bullet: %q", got)
	}
	if !strings.Contains(got, "• customer: Globex, total_revenue: 1200.00") {
		t.Errorf("missing second bullet: %q", got)
	}
}

func TestFormatTextLargeSetPreview(t *testing.T) {
	table := &datatypes.Table{Columns: []string{"customer", "order_count"}}
	for i := 0; i < 12; i++ {
		table.Rows = append(table.Rows, []any{fmt.Sprintf("customer %d", i), int64(i)})
	}

	got := FormatText(table)
	if !strings.HasPrefix(got, "Found 12 results (showing top 5):") {
		t.Errorf("missing preview header: %q", got)
	}
	if n := strings.Count(got, "•"); n != 5 {
		t.Errorf("bullet count = %d, want 5", n)
	}
}

func TestShouldChart(t *testing.T) {
	plottable := &datatypes.Table{
		Columns: []string{"customer", "total_revenue"},
		Rows:    [][]any{{"Acme LLC", float64(5000)}},
	}
	singleColumn := &datatypes.Table{
		Columns: []string{"order_count"},
		Rows:    [][]any{{int64(42)}},
	}

	tests := []struct {
		name    string
		table   *datatypes.Table
		mode    datatypes.Mode
		message string
		want    bool
	}{
		{"chart mode with plottable data", plottable, datatypes.ModeChart, "revenue by customer", true},
		{"chart wording with auto mode", plottable, datatypes.ModeAuto, "plot revenue by customer", true},
		{"no chart signal", plottable, datatypes.ModeAuto, "revenue by customer", false},
		{"single column cannot chart", singleColumn, datatypes.ModeChart, "chart the count", false},
		{"empty rows cannot chart", &datatypes.Table{Columns: []string{"a", "b"}}, datatypes.ModeChart, "chart it", false},
		{"nil table", nil, datatypes.ModeChart, "chart it", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldChart(tt.table, tt.mode, tt.message); got != tt.want {
				t.Errorf("ShouldChart = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChartColumns(t *testing.T) {
	tests := []struct {
		name  string
		table *datatypes.Table
		wantX string
		wantY string
	}{
		{
			name: "string label numeric value",
			table: &datatypes.Table{
				Columns: []string{"customer", "total_revenue"},
				Rows:    [][]any{{"Acme LLC", float64(5000)}},
			},
			wantX: "customer",
			wantY: "total_revenue",
		},
		{
			name: "numeric first then string picks by type",
			table: &datatypes.Table{
				Columns: []string{"order_count", "status"},
				Rows:    [][]any{{int64(10), "PAID"}},
			},
			wantX: "status",
			wantY: "order_count",
		},
		{
			name: "no rows defaults to first two columns",
			table: &datatypes.Table{
				Columns: []string{"a", "b"},
			},
			wantX: "a",
			wantY: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := ChartColumns(tt.table)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("ChartColumns = (%q, %q), want (%q, %q)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}
