// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared request, response, and conversation
// types exchanged between the DataChat router, its stores, and its external
// collaborators. Keeping them in a leaf package avoids import cycles between
// the HTTP layer and the orchestration layer.
package datatypes

import "time"

// =============================================================================
// Enumerations
// =============================================================================

// Source identifies the logical dataset a query targets.
type Source string

const (
	// SourceFinancial targets the financial_orders warehouse table.
	SourceFinancial Source = "financial"

	// SourceDevices targets the device_metrics warehouse table.
	SourceDevices Source = "devices"

	// SourceAuto lets the gateway pick a source from the message text.
	SourceAuto Source = "auto"
)

// Mode is the presentation format of a response.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeText  Mode = "text"
	ModeTable Mode = "table"
	ModeChart Mode = "chart"
)

// =============================================================================
// Chat Wire Types
// =============================================================================

// Message is a single role/content pair sent to the chat model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the inbound body of POST /v1/chat/ask.
type AskRequest struct {
	// Source selects the dataset; "auto" enables lexical source detection.
	Source Source `json:"source"`

	// Message is the raw user utterance.
	Message string `json:"message"`

	// Mode is the desired response presentation; "auto" enables detection.
	Mode Mode `json:"mode"`

	// TopK is the number of chunks retrieved on the retrieval path.
	TopK int `json:"top_k"`

	// SessionID scopes conversation memory. Empty uses the default session.
	SessionID string `json:"session_id"`
}

// Table is an ordered tabular result: columns first, then rows in the order
// the SQL engine returned them.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// AskResponse is the outbound body of POST /v1/chat/ask. Exactly one of
// Text, Table, or ChartRef is populated, selected by Mode.
type AskResponse struct {
	Mode     string `json:"mode"`
	Text     string `json:"text,omitempty"`
	Table    *Table `json:"table,omitempty"`
	ChartRef string `json:"chart_ref,omitempty"`
	SQL      string `json:"sql,omitempty"`
}

// =============================================================================
// Result Variants
// =============================================================================

// ResultKind tags the variant carried by a Result.
type ResultKind int

const (
	KindText ResultKind = iota
	KindTable
	KindChart
)

// Result is the tagged outcome of an ask pipeline stage. Only the field
// matching Kind is meaningful; SQL is populated whenever a query was
// compiled or generated for this result, regardless of Kind.
type Result struct {
	Kind     ResultKind
	Text     string
	Table    *Table
	ChartRef string
	SQL      string
}

// Response converts a Result into its wire representation.
func (r *Result) Response() *AskResponse {
	resp := &AskResponse{SQL: r.SQL}
	switch r.Kind {
	case KindTable:
		resp.Mode = string(ModeTable)
		resp.Table = r.Table
	case KindChart:
		resp.Mode = string(ModeChart)
		resp.ChartRef = r.ChartRef
	default:
		resp.Mode = string(ModeText)
		resp.Text = r.Text
	}
	return resp
}

// HasContent reports whether the result carries a cacheable payload.
// Chart-only results are not cached: the chart file is written once per
// render and re-serving a stale file name is not useful across restarts.
func (r *Result) HasContent() bool {
	return r.Text != "" || r.Table != nil
}

// =============================================================================
// Conversation Types
// =============================================================================

// Turn is one entry in a session's conversation history.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Text is the message content.
	Text string `json:"text"`

	// Timestamp records insertion time.
	Timestamp time.Time `json:"timestamp"`

	// SQL is the query generated for this turn, if any.
	SQL string `json:"sql,omitempty"`

	// ChartRef is the chart identifier produced for this turn, if any.
	ChartRef string `json:"chart_ref,omitempty"`
}

// =============================================================================
// Retrieval Types
// =============================================================================

// SearchHit is a single scored result from the vector search collaborator.
type SearchHit struct {
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Text returns the textual content of the hit's payload, trying the
// conventional payload keys in order. Returns "" when none is present.
func (h SearchHit) Text() string {
	for _, key := range []string{"text", "content", "chunk"} {
		if v, ok := h.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
