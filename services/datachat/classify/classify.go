// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify implements the stateless lexical classifiers that route a
// raw user utterance: data source detection, presentation-mode detection,
// greeting/social detection, and the SQL-necessity heuristic.
//
// Every function in this package is a pure function of its input text —
// deterministic, no hidden state, safe for concurrent use without
// synchronization. The classifiers never error: ambiguity is resolved by
// documented default bias, not surfaced to the caller.
package classify

import (
	"strings"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// =============================================================================
// Keyword Vocabularies
// =============================================================================

// financialKeywords score a message toward the financial_orders dataset.
var financialKeywords = []string{
	"order", "orders", "revenue", "sales", "customer", "customers",
	"payment", "paid", "amount", "money", "price", "invoice", "billing",
	"financial", "transaction",
}

// deviceKeywords score a message toward the device_metrics dataset.
var deviceKeywords = []string{
	"device", "devices", "sensor", "sensors", "uptime", "online", "offline",
	"status", "location", "iot", "telemetry", "metrics", "monitoring",
}

// chartKeywords, tableKeywords, and textKeywords drive mode detection.
// Checked in fixed priority order: chart > table > text.
var chartKeywords = []string{
	"chart", "graph", "plot", "visualize", "visualization",
	"show me a chart", "create a graph",
}

var tableKeywords = []string{
	"table", "list", "show all", "breakdown", "by location", "by customer",
	"by status", "group by",
}

var textKeywords = []string{
	"how many", "count", "total", "sum", "average", "avg", "what is",
	"tell me",
}

// aggregationKeywords back the SQL-necessity fallback heuristic, used only
// when the external intent classifier is unavailable.
var aggregationKeywords = []string{
	"how many", "how much", "count", "total", "sum", "average", "avg",
	"mean", "min", "max", "revenue", "sales order", "sales orders",
	"orders did we get", "orders did we receive", "number of orders",
}

// greetingPatterns cover greetings, thanks, and farewells. Substring match,
// so "thank you so much" and "ok thanks" both qualify.
var greetingPatterns = []string{
	"thank you", "thanks", "thank", "bye", "goodbye", "hello", "hi", "hey",
	"good morning", "good afternoon", "good evening", "how are you",
}

// =============================================================================
// Classifiers
// =============================================================================

// DetectSource scores the message against the financial and device keyword
// sets and returns the source with the higher match count.
//
// Ties (including zero matches on both sides) resolve to financial. This is
// the gateway's documented default bias, not an error condition: the
// financial dataset answers the majority of ambiguous analytics questions.
func DetectSource(message string) datatypes.Source {
	m := strings.ToLower(message)

	var financialScore, deviceScore int
	for _, k := range financialKeywords {
		if strings.Contains(m, k) {
			financialScore++
		}
	}
	for _, k := range deviceKeywords {
		if strings.Contains(m, k) {
			deviceScore++
		}
	}

	if deviceScore > financialScore {
		return datatypes.SourceDevices
	}
	return datatypes.SourceFinancial
}

// DetectMode returns the presentation mode implied by the message.
//
// First match wins in fixed priority order: chart > table > text. A message
// matching none of the vocabularies returns ModeAuto, leaving the decision
// to the result shape (row count) downstream.
func DetectMode(message string) datatypes.Mode {
	m := strings.ToLower(message)

	for _, k := range chartKeywords {
		if strings.Contains(m, k) {
			return datatypes.ModeChart
		}
	}
	for _, k := range tableKeywords {
		if strings.Contains(m, k) {
			return datatypes.ModeTable
		}
	}
	for _, k := range textKeywords {
		if strings.Contains(m, k) {
			return datatypes.ModeText
		}
	}
	return datatypes.ModeAuto
}

// IsGreeting reports whether the message is a greeting, thanks, or other
// social interaction. When true, the router short-circuits with a canned
// response and never reaches the cache, SQL, or retrieval paths.
func IsGreeting(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	for _, p := range greetingPatterns {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

// GreetingResponse returns the canned reply for a social message.
func GreetingResponse(message string) string {
	m := strings.ToLower(strings.TrimSpace(message))

	if strings.Contains(m, "thank") {
		return "You're welcome! Feel free to ask any questions about your data."
	}
	if strings.Contains(m, "bye") || strings.Contains(m, "goodbye") {
		return "Goodbye! Have a great day!"
	}
	return "Hello! I'm here to help you analyze your data. What would you like to know?"
}

// NeedsSQL is the fallback intent heuristic: it reports whether the message
// looks like an aggregation question. Used only when the external intent
// classifier call fails or is unavailable.
func NeedsSQL(message string) bool {
	m := strings.ToLower(message)
	for _, k := range aggregationKeywords {
		if strings.Contains(m, k) {
			return true
		}
	}
	return false
}
