// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlgen compiles recognized natural-language question shapes into
// parameterized aggregate SQL (the rule compiler) and sanitizes SQL obtained
// from the external generator (the safety normalizer).
//
// The rule compiler is a per-source ordered decision list: the first
// matching trigger wins, and triggers are mutually exclusive by construction
// (count vs. revenue vs. average vs. status breakdown). It never fabricates
// SQL for an unrecognized shape — the caller falls back to the external
// generator, whose output must then pass through Normalize before execution.
package sqlgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
	"github.com/AleutianAI/datachat/services/datachat/timewindow"
)

// =============================================================================
// Source Tables
// =============================================================================

// SourceTables maps each data source to its canonical warehouse table.
var SourceTables = map[datatypes.Source]string{
	datatypes.SourceFinancial: "financial_orders",
	datatypes.SourceDevices:   "device_metrics",
}

// TableFor returns the canonical table for a source, defaulting to the
// financial table for unrecognized values (the same bias the source
// detector applies).
func TableFor(source datatypes.Source) string {
	if tbl, ok := SourceTables[source]; ok {
		return tbl
	}
	return SourceTables[datatypes.SourceFinancial]
}

// =============================================================================
// Row-Limit Extraction
// =============================================================================

// limitPatterns extract an explicit row count from the message.
var limitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\btop\s+(\d+)\b`),
	regexp.MustCompile(`\bfirst\s+(\d+)\b`),
	regexp.MustCompile(`\blimit\s+(\d+)\b`),
	regexp.MustCompile(`\bshow\s+(\d+)\b`),
	regexp.MustCompile(`\b(\d+)\s+(?:customers?|orders?|devices?|results?)\b`),
}

// ExtractLimit returns the row limit named in the message, or 0 when none
// is present. Patterns are tried in order; the first match wins.
func ExtractLimit(message string) int {
	m := strings.ToLower(message)
	for _, p := range limitPatterns {
		if match := p.FindStringSubmatch(m); match != nil {
			if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// =============================================================================
// Rule Compiler
// =============================================================================

// Compile maps the message onto the fixed catalogue of recognized question
// shapes for the given source and returns complete SQL, or ("", false) when
// no rule matches.
//
// Every emitted query selects from the source's canonical table, carries the
// resolved time-window predicate as a WHERE conjunct, and wraps nullable
// aggregates in COALESCE so NULL amounts cannot poison sums.
func Compile(message string, source datatypes.Source, now time.Time) (string, bool) {
	m := strings.ToLower(message)
	tf := timewindow.ResolveAt(message, now)

	limitClause := ""
	if n := ExtractLimit(message); n > 0 {
		limitClause = fmt.Sprintf(" LIMIT %d", n)
	}

	switch source {
	case datatypes.SourceFinancial:
		return compileFinancial(m, tf, limitClause)
	case datatypes.SourceDevices:
		return compileDevices(m, tf, limitClause)
	}
	return "", false
}

func compileFinancial(m string, tf timewindow.Filter, limitClause string) (string, bool) {
	tbl := SourceTables[datatypes.SourceFinancial]

	// Breakdown signals. "top 5 customers", "revenue by customer", and
	// "customers with highest spend" all mean a per-customer grouping.
	groupByCustomer := strings.Contains(m, "by customer") ||
		strings.Contains(m, "per customer") ||
		(strings.Contains(m, "top") && strings.Contains(m, "customer")) ||
		(strings.Contains(m, "customer") &&
			(strings.Contains(m, "breakdown") || strings.Contains(m, "list") || strings.Contains(m, "show"))) ||
		strings.Contains(m, "customers by") ||
		strings.Contains(m, "customers with")

	wantsStatusBreakdown := strings.Contains(m, "status") ||
		strings.Contains(m, "paid") ||
		strings.Contains(m, "refunded") ||
		strings.Contains(m, "cancelled")

	if strings.Contains(m, "how many") && strings.Contains(m, "order") {
		return fmt.Sprintf("SELECT COUNT(*) AS order_count FROM %s WHERE %s;", tbl, tf.Predicate), true
	}

	if strings.Contains(m, "revenue") || strings.Contains(m, "sales") || strings.Contains(m, "income") {
		if groupByCustomer {
			return fmt.Sprintf(
				"SELECT customer, COALESCE(SUM(amount), 0) AS total_revenue FROM %s WHERE %s AND amount IS NOT NULL GROUP BY customer ORDER BY total_revenue DESC%s;",
				tbl, tf.Predicate, limitClause), true
		}
		return fmt.Sprintf(
			"SELECT COALESCE(SUM(amount), 0) AS total_revenue FROM %s WHERE %s AND amount IS NOT NULL;",
			tbl, tf.Predicate), true
	}

	if (strings.Contains(m, "average") || strings.Contains(m, "avg") || strings.Contains(m, "mean")) &&
		(strings.Contains(m, "order") || strings.Contains(m, "amount")) {
		return fmt.Sprintf("SELECT AVG(amount) AS average_order_value FROM %s WHERE %s;", tbl, tf.Predicate), true
	}

	if wantsStatusBreakdown {
		return fmt.Sprintf(
			"SELECT status, COUNT(*) AS order_count FROM %s WHERE %s GROUP BY status ORDER BY order_count DESC%s;",
			tbl, tf.Predicate, limitClause), true
	}

	return "", false
}

func compileDevices(m string, tf timewindow.Filter, limitClause string) (string, bool) {
	tbl := SourceTables[datatypes.SourceDevices]

	if strings.Contains(m, "average") && strings.Contains(m, "uptime") {
		if strings.Contains(m, "by location") || strings.Contains(m, "per location") {
			return fmt.Sprintf(
				"SELECT location, AVG(uptime_minutes) AS average_uptime_minutes FROM %s WHERE %s GROUP BY location ORDER BY average_uptime_minutes DESC%s;",
				tbl, tf.Predicate, limitClause), true
		}
		return fmt.Sprintf("SELECT AVG(uptime_minutes) AS average_uptime_minutes FROM %s WHERE %s;", tbl, tf.Predicate), true
	}

	if strings.Contains(m, "uptime") &&
		(strings.Contains(m, "by location") || strings.Contains(m, "per location")) {
		return fmt.Sprintf(
			"SELECT location, AVG(uptime_minutes) AS average_uptime_minutes FROM %s WHERE %s GROUP BY location ORDER BY average_uptime_minutes DESC%s;",
			tbl, tf.Predicate, limitClause), true
	}

	if strings.Contains(m, "how many") && strings.Contains(m, "device") {
		return fmt.Sprintf("SELECT COUNT(DISTINCT device_id) AS device_count FROM %s WHERE %s;", tbl, tf.Predicate), true
	}

	if strings.Contains(m, "status") || strings.Contains(m, "online") || strings.Contains(m, "offline") {
		return fmt.Sprintf(
			"SELECT status, COUNT(*) AS device_count FROM %s WHERE %s GROUP BY status ORDER BY device_count DESC%s;",
			tbl, tf.Predicate, limitClause), true
	}

	return "", false
}
