// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package respond formats tabular SQL results into the gateway's response
// shapes: readable text summaries, wire tables, and the chart decision.
package respond

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// textRowCap is the largest result set rendered in full as text; larger
// sets show the top textPreviewRows with a count.
const (
	textRowCap      = 10
	textPreviewRows = 5
)

// currencyColumns get two-decimal formatting in text output.
var currencyColumns = map[string]bool{
	"revenue": true, "amount": true, "total": true, "value": true,
	"total_revenue": true, "average_order_value": true,
}

// chartSignalWords mark a message as wanting a visualization even when the
// requested mode was auto.
var chartSignalWords = []string{"chart", "graph", "plot", "visualize", "visualization"}

// NoDataText is the canned reply for an empty result outside table mode.
const NoDataText = "No data found for your query."

// =============================================================================
// Text Formatting
// =============================================================================

// FormatText renders a tabular result as readable text. Single-cell results
// come back as "Result: <value>"; small sets are bulleted in full; large
// sets show a preview with the total count.
func FormatText(table *datatypes.Table) string {
	if table == nil || len(table.Rows) == 0 {
		return NoDataText
	}

	if len(table.Rows) == 1 && len(table.Columns) == 1 {
		v := table.Rows[0][0]
		if v == nil {
			return "No data available."
		}
		return "Result: " + formatCell(table.Columns[0], v)
	}

	if len(table.Rows) <= textRowCap {
		return fmt.Sprintf("Found %d results:\n%s", len(table.Rows), bulletRows(table, len(table.Rows)))
	}
	return fmt.Sprintf("Found %d results (showing top %d):\n%s",
		len(table.Rows), textPreviewRows, bulletRows(table, textPreviewRows))
}

func bulletRows(table *datatypes.Table, n int) string {
	lines := make([]string, 0, n)
	for _, row := range table.Rows[:n] {
		if len(table.Columns) == 1 {
			lines = append(lines, "• "+formatCell(table.Columns[0], row[0]))
			continue
		}
		parts := make([]string, 0, len(row))
		for i, v := range row {
			if v == nil || i >= len(table.Columns) {
				continue
			}
			parts = append(parts, table.Columns[i]+": "+formatCell(table.Columns[i], v))
		}
		lines = append(lines, "• "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatCell(column string, v any) string {
	switch n := v.(type) {
	case float64:
		if currencyColumns[strings.ToLower(column)] {
			return fmt.Sprintf("%.2f", n)
		}
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%.2f", n)
	case int64:
		return fmt.Sprintf("%d", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// =============================================================================
// Chart Decision
// =============================================================================

// ShouldChart reports whether the result warrants a chart: the caller asked
// for one (mode or message wording) AND the data can carry one (at least
// two columns and one row).
func ShouldChart(table *datatypes.Table, mode datatypes.Mode, message string) bool {
	if table == nil {
		return false
	}
	wantsChart := mode == datatypes.ModeChart
	if !wantsChart {
		m := strings.ToLower(message)
		for _, w := range chartSignalWords {
			if strings.Contains(m, w) {
				wantsChart = true
				break
			}
		}
	}
	return wantsChart && len(table.Columns) >= 2 && len(table.Rows) >= 1
}

// ChartColumns picks the X and Y columns: the first string-valued column
// for X and the first numeric column for Y, defaulting to the first two
// columns when types don't disambiguate.
func ChartColumns(table *datatypes.Table) (x, y string) {
	x, y = table.Columns[0], table.Columns[1]
	if len(table.Rows) == 0 {
		return x, y
	}

	first := table.Rows[0]
	for i, v := range first {
		if _, ok := v.(string); ok && i < len(table.Columns) {
			x = table.Columns[i]
			break
		}
	}
	for i, v := range first {
		switch v.(type) {
		case float64, int64:
			if i < len(table.Columns) {
				y = table.Columns[i]
			}
			return x, y
		}
	}
	return x, y
}
