// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router sequences one ask request through the gateway pipeline:
//
//	greeting check → source/mode detection → cache check → intent resolution
//	→ (SQL path | retrieval path) → format → cache store + learn → history.
//
// Each stage is visited at most once per request; fallbacks are explicit
// stage outcomes, never recovered panics. No cache or session lock is held
// across a call to the chat model, the vector store, or the SQL engine.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/datachat/services/chart"
	"github.com/AleutianAI/datachat/services/datachat/classify"
	"github.com/AleutianAI/datachat/services/datachat/datatypes"
	"github.com/AleutianAI/datachat/services/datachat/querycache"
	"github.com/AleutianAI/datachat/services/datachat/respond"
	"github.com/AleutianAI/datachat/services/datachat/session"
	"github.com/AleutianAI/datachat/services/datachat/sqlgen"
	"github.com/AleutianAI/datachat/services/llm"
	"github.com/AleutianAI/datachat/services/sqlstore"
	"github.com/AleutianAI/datachat/services/vectorstore"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	askTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "router",
		Name:      "ask_total",
		Help:      "Ask requests by path (greeting, cache, rule_sql, llm_sql, retrieval) and outcome",
	}, []string{"path", "outcome"})

	askLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "datachat",
		Subsystem: "router",
		Name:      "ask_latency_seconds",
		Help:      "End-to-end ask latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	sqlRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "router",
		Name:      "sql_rejected_total",
		Help:      "Generated SQL statements rejected by the safety gate",
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var askTracer = otel.Tracer("aleutian.datachat.router")

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultSessionID scopes requests that carry no session id.
	DefaultSessionID = "default_session"

	// defaultTopK is the retrieval depth when the request leaves it unset.
	defaultTopK = 6

	// schemaTopK is the retrieval depth for schema-context grounding.
	schemaTopK = 3

	// contextTurns is how many recent turns feed prompt context, and how
	// many prior user turns feed the cache-key context hash.
	contextTurns = 3

	// assistantChartText stands in for the assistant turn when the response
	// was a chart with no text.
	assistantChartText = "Generated data visualization"
)

// degradedText is the canned reply when neither the model nor retrieval can
// produce an answer.
const degradedText = "I apologize, but I'm having trouble processing your request right now. Please try again."

// =============================================================================
// Router
// =============================================================================

// Deps are the router's collaborators. Chat, Search, SQL, Sessions, and
// Cache must be non-nil; Charts may be nil to disable chart responses.
type Deps struct {
	Chat     llm.ChatClient
	Search   vectorstore.Searcher
	SQL      sqlstore.Executor
	Charts   chart.Renderer
	Sessions session.Store
	Cache    *querycache.Learner
	Logger   *slog.Logger
}

// Router orchestrates the ask pipeline.
//
// # Thread Safety
//
// Safe for concurrent use. The router itself is stateless between requests;
// shared state lives in the injected session store and cache, which carry
// their own synchronization.
type Router struct {
	chat     llm.ChatClient
	search   vectorstore.Searcher
	sql      sqlstore.Executor
	charts   chart.Renderer
	sessions session.Store
	cache    *querycache.Learner
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Router. Panics on a missing required collaborator: this is
// a wiring error, not a runtime condition.
func New(deps Deps) *Router {
	if deps.Chat == nil || deps.Search == nil || deps.SQL == nil || deps.Sessions == nil || deps.Cache == nil {
		panic("router.New: missing required collaborator")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{
		chat:     deps.Chat,
		search:   deps.Search,
		sql:      deps.SQL,
		charts:   deps.Charts,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Ask runs one request through the pipeline and returns the wire response.
//
// A non-nil error means no response could be produced at all (or the
// request tripped the SQL safety gate, which callers should surface as a
// validation failure via errors.Is(err, sqlgen.ErrUnsafeSQL)). Every other
// downstream failure degrades to a simpler path inside this call.
func (r *Router) Ask(ctx context.Context, req datatypes.AskRequest) (*datatypes.AskResponse, error) {
	start := time.Now()
	defer func() { askLatency.Observe(time.Since(start).Seconds()) }()

	ctx, span := askTracer.Start(ctx, "router.Router.Ask",
		oteltrace.WithAttributes(
			attribute.String("source", string(req.Source)),
			attribute.String("mode", string(req.Mode)),
		),
	)
	defer span.End()

	req = withDefaults(req)

	// 1. Greeting short-circuit: canned response, user turn recorded, no
	// cache or SQL involvement.
	if classify.IsGreeting(req.Message) {
		r.appendTurn(ctx, req.SessionID, datatypes.Turn{Role: "user", Text: req.Message})
		askTotal.WithLabelValues("greeting", "success").Inc()
		span.SetAttributes(attribute.String("path", "greeting"))
		return (&datatypes.Result{Kind: datatypes.KindText, Text: classify.GreetingResponse(req.Message)}).Response(), nil
	}

	// 2. Source detection.
	source := req.Source
	if source != datatypes.SourceFinancial && source != datatypes.SourceDevices {
		source = classify.DetectSource(req.Message)
		r.logger.Debug("source detected",
			slog.String("source", string(source)),
			slog.String("query_preview", preview(req.Message, 50)),
		)
	}
	span.SetAttributes(attribute.String("resolved_source", string(source)))

	// 3. Mode detection.
	mode := req.Mode
	if mode == datatypes.ModeAuto {
		mode = classify.DetectMode(req.Message)
	}

	// 4. Cache check. The key covers the resolved source and mode and a hash
	// of recent conversation context, so follow-ups with different history
	// miss while an explicit mode and its auto-detected twin share an entry.
	contextHash := r.contextHash(ctx, req.SessionID, req.Message)
	key := querycache.Key(req.Message, source, mode, contextHash)

	if entry, ok := r.cache.Get(ctx, key); ok {
		var resp datatypes.AskResponse
		if err := json.Unmarshal(entry.Payload, &resp); err == nil {
			askTotal.WithLabelValues("cache", "success").Inc()
			span.SetAttributes(attribute.String("path", "cache"))
			r.appendExchange(ctx, req.SessionID, req.Message, &resp)
			return &resp, nil
		}
		// A corrupt payload is treated as a miss.
		r.logger.Warn("cache payload unmarshal failed", slog.String("key", preview(key, 8)))
	}

	// 5. Context gathering: schema docs and recent conversation, both
	// best-effort.
	schemaContext := r.schemaContext(ctx, source, req.Message)
	conversationContext, err := session.ContextWindow(ctx, r.sessions, req.SessionID, contextTurns)
	if err != nil {
		r.logger.Warn("conversation context failed", slog.String("error", err.Error()))
		conversationContext = ""
	}

	// 6. Intent resolution, then the chosen path.
	var result *datatypes.Result
	var path string
	if r.detectIntent(ctx, req.Message, schemaContext, conversationContext) == intentSQL {
		result, path, err = r.sqlPath(ctx, req, source, mode, schemaContext, conversationContext)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			askTotal.WithLabelValues(path, "rejected").Inc()
			return nil, err
		}
	} else {
		result = r.retrievalPath(ctx, req, source, schemaContext, conversationContext)
		path = "retrieval"
	}
	span.SetAttributes(attribute.String("path", path))

	// 7. Cache store + learn, only for responses with cacheable content.
	resp := result.Response()
	if result.HasContent() {
		if payload, err := json.Marshal(resp); err == nil {
			r.cache.Put(ctx, key, querycache.Entry{
				Query:   req.Message,
				Source:  source,
				Mode:    mode,
				SQL:     result.SQL,
				Payload: payload,
			})
		}
		r.cache.Learn(req.Message, source, result.SQL)
	}

	// 8. History append: the user turn and the assistant turn, together,
	// after the response is fully determined.
	r.appendExchange(ctx, req.SessionID, req.Message, resp)

	askTotal.WithLabelValues(path, "success").Inc()
	return resp, nil
}

func withDefaults(req datatypes.AskRequest) datatypes.AskRequest {
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.Source == "" {
		req.Source = datatypes.SourceAuto
	}
	if req.Mode == "" {
		req.Mode = datatypes.ModeAuto
	}
	return req
}

// =============================================================================
// Intent Resolution
// =============================================================================

const (
	intentSQL = "SQL"
	intentRAG = "RAG"
)

// detectIntent asks the model whether the question is quantitative (SQL) or
// descriptive (RAG). On model failure it falls back to the lexical
// aggregation heuristic; ambiguity is never an error.
func (r *Router) detectIntent(ctx context.Context, message, schemaContext, conversationContext string) string {
	reply, err := r.chat.Chat(ctx, intentPrompt(message, schemaContext, conversationContext))
	if err != nil {
		r.logger.Warn("intent classification failed, using heuristic", slog.String("error", err.Error()))
		if classify.NeedsSQL(message) {
			return intentSQL
		}
		return intentRAG
	}
	if strings.Contains(strings.ToUpper(reply), intentSQL) {
		return intentSQL
	}
	return intentRAG
}

// =============================================================================
// SQL Path
// =============================================================================

// sqlPath compiles or generates SQL, executes it, and formats the result.
// Returns a non-nil error only for the safety-gate rejection; every other
// failure degrades to the retrieval path.
func (r *Router) sqlPath(ctx context.Context, req datatypes.AskRequest, source datatypes.Source, mode datatypes.Mode, schemaContext, conversationContext string) (*datatypes.Result, string, error) {
	now := r.now()
	path := "rule_sql"

	sqlText, ok := sqlgen.Compile(req.Message, source, now)
	if !ok {
		path = "llm_sql"
		var err error
		sqlText, err = r.generateSQL(ctx, req.Message, source, schemaContext, now)
		if err != nil {
			sqlRejectedTotal.Inc()
			return nil, path, err
		}
	}

	if sqlText == "" {
		// Nothing compilable or generatable; answer descriptively instead.
		return r.retrievalPath(ctx, req, source, schemaContext, conversationContext), "retrieval", nil
	}

	table, err := r.sql.Execute(ctx, sqlText)
	if err != nil {
		r.logger.Warn("sql execution failed, falling back to retrieval",
			slog.String("error", err.Error()),
			slog.String("sql", preview(sqlText, 120)),
		)
		askTotal.WithLabelValues(path, "exec_error").Inc()
		return r.retrievalPath(ctx, req, source, schemaContext, conversationContext), "retrieval", nil
	}

	return r.formatSQLResult(ctx, req.Message, sqlText, mode, table), path, nil
}

// generateSQL obtains SQL from the model and pushes it through the safety
// normalizer. An unsafe statement is a hard per-request failure
// (sqlgen.ErrUnsafeSQL); any other failure returns ("", nil) so the caller
// can fall back.
func (r *Router) generateSQL(ctx context.Context, message string, source datatypes.Source, schemaContext string, now time.Time) (string, error) {
	raw, err := r.chat.Chat(ctx, sqlPrompt(message, sqlgen.TableFor(source), schemaContext))
	if err != nil {
		r.logger.Warn("sql generation failed", slog.String("error", err.Error()))
		return "", nil
	}

	extracted := sqlgen.ExtractSQL(raw)
	if extracted == "" {
		extracted = raw
	}

	normalized, err := sqlgen.Normalize(extracted, message, source, now)
	if err != nil {
		if errors.Is(err, sqlgen.ErrUnsafeSQL) {
			r.logger.Warn("generated sql rejected by safety gate", slog.String("sql", preview(extracted, 120)))
			return "", fmt.Errorf("generated SQL rejected: %w", err)
		}
		return "", nil
	}

	return sqlgen.AddLimit(normalized, message), nil
}

// formatSQLResult turns an executed table into the response variant the
// mode and result shape call for.
func (r *Router) formatSQLResult(ctx context.Context, message, sqlText string, mode datatypes.Mode, table *datatypes.Table) *datatypes.Result {
	if table == nil || len(table.Rows) == 0 {
		// Empty result policy: an explicitly requested table gets an empty
		// table; everything else gets the canned no-data text.
		if mode == datatypes.ModeTable {
			return &datatypes.Result{Kind: datatypes.KindTable, Table: table, SQL: sqlText}
		}
		return &datatypes.Result{Kind: datatypes.KindText, Text: respond.NoDataText, SQL: sqlText}
	}

	if r.charts != nil && respond.ShouldChart(table, mode, message) {
		x, y := respond.ChartColumns(table)
		ref, err := r.charts.Render(ctx, table, x, y, "bar", "")
		if err == nil {
			return &datatypes.Result{Kind: datatypes.KindChart, ChartRef: ref, SQL: sqlText}
		}
		// Chart failure falls through to table/text.
		r.logger.Warn("chart render failed", slog.String("error", err.Error()))
	}

	if mode == datatypes.ModeTable || len(table.Rows) > 1 {
		return &datatypes.Result{Kind: datatypes.KindTable, Table: table, SQL: sqlText}
	}
	return &datatypes.Result{Kind: datatypes.KindText, Text: respond.FormatText(table), SQL: sqlText}
}

// =============================================================================
// Retrieval Path
// =============================================================================

// retrievalPath answers descriptively from searched documentation chunks.
// It never errors: search or model failure degrades to the fallback prompt
// and finally to the canned degraded response.
func (r *Router) retrievalPath(ctx context.Context, req datatypes.AskRequest, source datatypes.Source, schemaContext, conversationContext string) *datatypes.Result {
	chunks := r.searchChunks(ctx, source, req.Message, req.TopK)

	if len(chunks) > 0 && schemaContext != "" {
		text, err := r.chat.Chat(ctx, ragPrompt(req.Message, schemaContext, conversationContext, chunks))
		if err == nil {
			return &datatypes.Result{Kind: datatypes.KindText, Text: text}
		}
		r.logger.Warn("schema-aware retrieval answer failed", slog.String("error", err.Error()))
	}

	text, err := r.chat.Chat(ctx, ragFallbackPrompt(req.Message, chunks))
	if err != nil {
		r.logger.Warn("retrieval fallback answer failed", slog.String("error", err.Error()))
		askTotal.WithLabelValues("retrieval", "degraded").Inc()
		return &datatypes.Result{Kind: datatypes.KindText, Text: degradedText}
	}
	return &datatypes.Result{Kind: datatypes.KindText, Text: text}
}

func (r *Router) searchChunks(ctx context.Context, source datatypes.Source, query string, topK int) []string {
	hits, err := r.search.Search(ctx, source, query, topK)
	if err != nil {
		r.logger.Warn("vector search failed", slog.String("error", err.Error()))
		return nil
	}
	chunks := make([]string, 0, len(hits))
	for _, h := range hits {
		if t := h.Text(); t != "" {
			chunks = append(chunks, t)
		}
	}
	return chunks
}

// schemaContext retrieves the top schema-documentation chunks for grounding
// the intent and SQL prompts. Best-effort: failure yields "".
func (r *Router) schemaContext(ctx context.Context, source datatypes.Source, message string) string {
	chunks := r.searchChunks(ctx, source, message, schemaTopK)
	return strings.Join(chunks, "\n")
}

// =============================================================================
// History and Cache-Key Helpers
// =============================================================================

// contextHash digests the last contextTurns user turns whose text differs
// from the current message. Assistant turns and repeats of the same
// question are excluded so an identical re-ask lands on the same key.
func (r *Router) contextHash(ctx context.Context, sessionID, message string) string {
	turns, err := r.sessions.History(ctx, sessionID)
	if err != nil {
		r.logger.Warn("history read failed for cache key", slog.String("error", err.Error()))
		return querycache.ContextHash("")
	}

	current := strings.ToLower(strings.TrimSpace(message))
	var prior []string
	for _, t := range turns {
		if t.Role != "user" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(t.Text)) == current {
			continue
		}
		prior = append(prior, t.Text)
	}
	if len(prior) > contextTurns {
		prior = prior[len(prior)-contextTurns:]
	}
	return querycache.ContextHash(strings.Join(prior, "\n"))
}

// appendExchange records the user turn and the assistant turn for a
// completed response.
func (r *Router) appendExchange(ctx context.Context, sessionID, message string, resp *datatypes.AskResponse) {
	r.appendTurn(ctx, sessionID, datatypes.Turn{Role: "user", Text: message})

	text := resp.Text
	if text == "" {
		text = assistantChartText
	}
	r.appendTurn(ctx, sessionID, datatypes.Turn{
		Role:     "assistant",
		Text:     text,
		SQL:      resp.SQL,
		ChartRef: resp.ChartRef,
	})
}

func (r *Router) appendTurn(ctx context.Context, sessionID string, turn datatypes.Turn) {
	if err := r.sessions.Append(ctx, sessionID, turn); err != nil {
		r.logger.Warn("history append failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
