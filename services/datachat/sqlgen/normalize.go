// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
	"github.com/AleutianAI/datachat/services/datachat/timewindow"
)

// =============================================================================
// Safety Normalizer
// =============================================================================
//
// Applied to SQL obtained from the external generator, never to
// rule-compiled SQL (trusted by construction). This is the sole safety gate
// before execution: skipping it for a generated query is a correctness
// violation, not an optimization.

// ErrUnsafeSQL is returned when generated SQL contains a mutating statement.
// The request fails; the statement is never executed, and nothing is
// silently stripped.
var ErrUnsafeSQL = errors.New("sqlgen: generated SQL contains a mutating statement")

// mutatingPattern matches forbidden keywords as whole words, so a column
// named "last_update_note" does not trip the gate but "UPDATE t SET" does.
var mutatingPattern = regexp.MustCompile(`(?i)\b(update|delete|insert|drop|alter)\b`)

// tableSynonyms are the table-name variants the model tends to invent.
// Each is rewritten, whole-word and case-insensitive, to the canonical
// table for the query's source.
var tableSynonyms = []string{
	"orders", "order", "financial_order", "device_metric", "devices", "metrics",
}

var synonymPatterns = compileSynonymPatterns()

func compileSynonymPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(tableSynonyms))
	for _, s := range tableSynonyms {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+s+`\b`))
	}
	return patterns
}

// clauseBoundary locates the first trailing clause (GROUP BY / ORDER BY /
// LIMIT), used as the insertion point for injected predicates.
var clauseBoundary = regexp.MustCompile(`(?i)\b(group\s+by|order\s+by|limit)\b`)

// wherePattern detects an existing WHERE clause.
var wherePattern = regexp.MustCompile(`(?i)\bwhere\b`)

// dayBoundPattern detects an existing lower bound on ts, in either quoting
// style the generator produces.
var dayBoundPattern = regexp.MustCompile(`(?i)\bts\s*>=`)

// Normalize rewrites externally generated SQL into the expected vocabulary
// and enforces the safety policy:
//
//  1. table-name synonyms are rewritten to the canonical table for source,
//  2. the statement is truncated to a single statement and terminated,
//  3. mutating statements are rejected with ErrUnsafeSQL,
//  4. if the message says "today" but the SQL has no day bound on ts, a
//     day-truncation predicate is injected conjunctively.
func Normalize(sqlText, message string, source datatypes.Source, now time.Time) (string, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return "", errors.New("sqlgen: empty SQL")
	}

	if m := mutatingPattern.FindString(sqlText); m != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafeSQL, strings.ToLower(m))
	}

	table := TableFor(source)
	for _, p := range synonymPatterns {
		sqlText = p.ReplaceAllString(sqlText, table)
	}

	// Single statement only: keep everything up to the first terminator.
	if i := strings.Index(sqlText, ";"); i >= 0 {
		sqlText = strings.TrimSpace(sqlText[:i])
	}

	if strings.Contains(strings.ToLower(message), "today") && !dayBoundPattern.MatchString(sqlText) {
		tf := timewindow.ResolveAt("today", now)
		sqlText = injectPredicate(sqlText, tf.Predicate)
	}

	return sqlText + ";", nil
}

// injectPredicate ANDs pred into the statement's WHERE clause, creating one
// if absent. The predicate lands before any GROUP BY / ORDER BY / LIMIT.
func injectPredicate(sqlText, pred string) string {
	var insert string
	if wherePattern.MatchString(sqlText) {
		insert = " AND " + pred
	} else {
		insert = " WHERE " + pred
	}

	if loc := clauseBoundary.FindStringIndex(sqlText); loc != nil {
		return strings.TrimRight(sqlText[:loc[0]], " ") + insert + " " + sqlText[loc[0]:]
	}
	return sqlText + insert
}

// =============================================================================
// Generator Output Extraction
// =============================================================================

// sqlLineKeywords identify lines worth keeping when the model answers with
// prose wrapped around bare SQL.
var sqlLineKeywords = []string{"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT"}

// ExtractSQL pulls a SQL statement out of raw model output. It prefers a
// fenced code block containing SELECT or WITH; failing that it collects the
// SQL-looking lines. Returns "" when no statement can be found.
func ExtractSQL(text string) string {
	cleaned := strings.ReplaceAll(text, "```sql", "```")
	cleaned = strings.ReplaceAll(cleaned, "```SQL", "```")

	if strings.Contains(cleaned, "```") {
		for _, part := range strings.Split(cleaned, "```") {
			part = strings.TrimSpace(part)
			upper := strings.ToUpper(part)
			if part != "" && (strings.Contains(upper, "SELECT") || strings.Contains(upper, "WITH")) {
				return part
			}
		}
	}

	upper := strings.ToUpper(text)
	if !strings.Contains(upper, "SELECT") && !strings.Contains(upper, "WITH") {
		return ""
	}

	var sqlLines []string
	for _, line := range strings.Split(text, "\n") {
		lineUpper := strings.ToUpper(line)
		for _, kw := range sqlLineKeywords {
			if strings.Contains(lineUpper, kw) {
				sqlLines = append(sqlLines, strings.TrimSpace(line))
				break
			}
		}
	}
	if len(sqlLines) == 0 {
		return ""
	}
	return strings.Join(sqlLines, "\n")
}

// AddLimit appends a LIMIT clause to generated SQL when the message names a
// row count the generator ignored. Rule-compiled SQL never needs this — the
// compiler emits its own LIMIT.
func AddLimit(sqlText, message string) string {
	n := ExtractLimit(message)
	if n == 0 || strings.Contains(strings.ToUpper(sqlText), "LIMIT") {
		return sqlText
	}
	return strings.TrimRight(strings.TrimSpace(sqlText), ";") + fmt.Sprintf(" LIMIT %d;", n)
}
