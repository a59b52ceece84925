// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package querycache memoizes request→response mappings with time-based
// expiry and learns which phrasings map to which SQL templates.
//
// The cache is content-addressed: the key is a SHA-256 digest over the
// normalized message, source, mode, and a hash of recent conversation
// context. A fixed-width digest (rather than a language-level hash) keeps
// keys stable across processes and restarts, so the optional persistent
// backend can serve entries written by a previous run.
//
// Policy, in one place:
//   - an entry older than the TTL is treated as absent and actively purged
//     on the lookup that discovers it;
//   - the store never exceeds its entry bound — when full, the single
//     globally-oldest entry by creation time is evicted before insert
//     (oldest-by-creation, deliberately not LRU);
//   - the hit counter starts at 1 on insert and increments only on
//     subsequent Get hits;
//   - pattern logs are FIFO ring buffers, bounded by index, never
//     deduplicated.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	cacheLookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "querycache",
		Name:      "lookup_total",
		Help:      "Cache lookups by outcome: hit, miss, expired, restored",
	}, []string{"outcome"})

	cacheEvictionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "querycache",
		Name:      "eviction_total",
		Help:      "Entries evicted because the store was at capacity",
	})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "datachat",
		Subsystem: "querycache",
		Name:      "entries",
		Help:      "Current number of cached entries",
	})
)

// =============================================================================
// Defaults and Bounds
// =============================================================================

const (
	// DefaultTTL is the lifetime of a cached response.
	DefaultTTL = time.Hour

	// DefaultMaxEntries bounds the in-memory store.
	DefaultMaxEntries = 1000

	// maxPhrasePatterns bounds the per-source phrasing log.
	maxPhrasePatterns = 100

	// maxSuccessfulQueries bounds the accepted (phrasing → SQL) log.
	maxSuccessfulQueries = 200

	// similarityThreshold is the minimum Jaccard score for a suggestion.
	similarityThreshold = 0.3
)

// =============================================================================
// Types
// =============================================================================

// Entry is one cached request→response mapping.
type Entry struct {
	Key       string
	Query     string
	Source    datatypes.Source
	Mode      datatypes.Mode
	SQL       string
	Payload   []byte
	CreatedAt time.Time
	HitCount  int
}

// PatternRecord is one accepted (phrasing, compiled SQL) pair.
type PatternRecord struct {
	Query     string
	SQL       string
	Source    datatypes.Source
	Timestamp time.Time
}

// Suggestion is a logged phrasing scored against a query.
type Suggestion struct {
	Query string  `json:"query"`
	Score float64 `json:"score"`
}

// Stats summarizes the cache for the stats endpoint.
type Stats struct {
	Size            int                      `json:"cache_size"`
	TotalHits       int                      `json:"total_hits"`
	AvgHitsPerQuery float64                  `json:"avg_hits_per_query"`
	PatternsLearned map[datatypes.Source]int `json:"patterns_learned"`
	SuccessfulSQL   int                      `json:"successful_queries"`
}

// Backend is optional write-through persistence for cache entries. All
// methods must tolerate concurrent use. Load returns (nil, nil) on miss.
// A nil Backend is valid and means in-memory-only operation.
type Backend interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// Learner
// =============================================================================

// Learner is the query cache plus the pattern learner. Pattern learning is
// passive: it records accepted phrasings for later similarity lookup and
// never alters routing decisions.
//
// # Thread Safety
//
// Safe for concurrent use. One mutex guards the whole structure; every
// get-then-purge and evict-then-insert sequence is a single critical
// section. Backend calls are embedded-store operations (microseconds), so
// holding the lock across them is acceptable; long-latency external calls
// never happen under this lock.
type Learner struct {
	mu      sync.Mutex
	entries map[string]*Entry
	phrases map[datatypes.Source][]string
	sqlLog  []PatternRecord

	ttl        time.Duration
	maxEntries int
	backend    Backend
	logger     *slog.Logger
	now        func() time.Time
}

// NewLearner creates a Learner. Pass ttl <= 0 or maxEntries <= 0 for the
// defaults; backend may be nil for in-memory-only operation.
func NewLearner(ttl time.Duration, maxEntries int, backend Backend, logger *slog.Logger) *Learner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{
		entries:    make(map[string]*Entry),
		phrases:    make(map[datatypes.Source][]string),
		ttl:        ttl,
		maxEntries: maxEntries,
		backend:    backend,
		logger:     logger,
		now:        time.Now,
	}
}

// =============================================================================
// Keys
// =============================================================================

// Key derives the content-addressed cache key. The message is normalized
// (trimmed, lower-cased) so trivially re-phrased repeats of the same
// question share an entry; contextHash makes the key conversation-context-
// sensitive rather than purely message-sensitive.
func Key(message string, source datatypes.Source, mode datatypes.Mode, contextHash string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	h := sha256.New()
	fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s", normalized, source, mode, contextHash)
	return hex.EncodeToString(h.Sum(nil))
}

// ContextHash digests free-form conversation context into a fixed-width
// token for Key.
func ContextHash(context string) string {
	sum := sha256.Sum256([]byte(context))
	return hex.EncodeToString(sum[:8])
}

// =============================================================================
// Cache Operations
// =============================================================================

// Get returns the cached entry for key, or (nil, false) when the key is
// absent or expired. An expired entry is purged, not merely skipped. On a
// hit the entry's hit counter is incremented.
func (l *Learner) Get(ctx context.Context, key string) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if ok {
		if now.Sub(entry.CreatedAt) >= l.ttl {
			delete(l.entries, key)
			cacheEntries.Set(float64(len(l.entries)))
			l.deleteBackend(ctx, key)
			cacheLookupTotal.WithLabelValues("expired").Inc()
			return nil, false
		}
		entry.HitCount++
		cacheLookupTotal.WithLabelValues("hit").Inc()
		cp := *entry
		return &cp, true
	}

	// Miss in memory: a persistent backend may still have the entry from a
	// previous run. Badger enforces its own TTL, so anything it returns is
	// live.
	if l.backend != nil {
		restored, err := l.backend.Load(ctx, key)
		if err != nil {
			l.logger.Warn("query cache: backend load failed", slog.String("error", err.Error()))
		} else if restored != nil && now.Sub(restored.CreatedAt) < l.ttl {
			restored.HitCount++
			l.insertLocked(ctx, restored, false)
			cacheLookupTotal.WithLabelValues("restored").Inc()
			cp := *restored
			return &cp, true
		}
	}

	cacheLookupTotal.WithLabelValues("miss").Inc()
	return nil, false
}

// Put inserts an entry under key, evicting the globally-oldest entry first
// when the store is at capacity. The hit counter starts at 1; Put never
// increments it.
func (l *Learner) Put(ctx context.Context, key string, entry Entry) {
	entry.Key = key
	entry.CreatedAt = l.now()
	entry.HitCount = 1

	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(ctx, &entry, true)
}

// insertLocked performs capacity eviction and insert. Caller holds l.mu.
func (l *Learner) insertLocked(ctx context.Context, entry *Entry, persist bool) {
	if _, exists := l.entries[entry.Key]; !exists && len(l.entries) >= l.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range l.entries {
			if oldestKey == "" || e.CreatedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.CreatedAt
			}
		}
		delete(l.entries, oldestKey)
		l.deleteBackend(ctx, oldestKey)
		cacheEvictionTotal.Inc()
	}

	l.entries[entry.Key] = entry
	cacheEntries.Set(float64(len(l.entries)))

	if persist && l.backend != nil {
		if err := l.backend.Save(ctx, entry); err != nil {
			// Persistence is best-effort; the in-memory entry stands.
			l.logger.Warn("query cache: backend save failed", slog.String("error", err.Error()))
		}
	}
}

func (l *Learner) deleteBackend(ctx context.Context, key string) {
	if l.backend == nil {
		return
	}
	if err := l.backend.Delete(ctx, key); err != nil {
		l.logger.Warn("query cache: backend delete failed", slog.String("error", err.Error()))
	}
}

// =============================================================================
// Pattern Learning
// =============================================================================

// Learn records an accepted phrasing for the source and, when sql is
// non-empty, the (phrasing → SQL) pair. Both logs are bounded FIFO: the
// oldest records fall off the front.
func (l *Learner) Learn(message string, source datatypes.Source, sql string) {
	phrase := strings.ToLower(message)

	l.mu.Lock()
	defer l.mu.Unlock()

	phrases := append(l.phrases[source], phrase)
	if len(phrases) > maxPhrasePatterns {
		phrases = phrases[len(phrases)-maxPhrasePatterns:]
	}
	l.phrases[source] = phrases

	if sql != "" {
		l.sqlLog = append(l.sqlLog, PatternRecord{
			Query:     phrase,
			SQL:       sql,
			Source:    source,
			Timestamp: l.now(),
		})
		if len(l.sqlLog) > maxSuccessfulQueries {
			l.sqlLog = l.sqlLog[len(l.sqlLog)-maxSuccessfulQueries:]
		}
	}
}

// Similar scores the query against every logged phrasing for the source by
// Jaccard similarity over token sets, returning up to limit suggestions
// above the threshold, best first. A suggestion feature — never consulted
// for cache lookups or routing.
func (l *Learner) Similar(message string, source datatypes.Source, limit int) []Suggestion {
	queryTokens := tokenSet(message)
	if len(queryTokens) == 0 {
		return nil
	}

	l.mu.Lock()
	phrases := make([]string, len(l.phrases[source]))
	copy(phrases, l.phrases[source])
	l.mu.Unlock()

	var out []Suggestion
	for _, phrase := range phrases {
		score := jaccard(queryTokens, tokenSet(phrase))
		if score > similarityThreshold {
			out = append(out, Suggestion{Query: phrase, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PatternCount reports how many phrasings are logged for the source.
func (l *Learner) PatternCount(source datatypes.Source) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.phrases[source])
}

// Stats implements the stats endpoint's cache section.
func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Stats{
		Size:            len(l.entries),
		PatternsLearned: make(map[datatypes.Source]int, len(l.phrases)),
		SuccessfulSQL:   len(l.sqlLog),
	}
	for source, phrases := range l.phrases {
		st.PatternsLearned[source] = len(phrases)
	}
	for _, e := range l.entries {
		st.TotalHits += e.HitCount
	}
	if len(l.entries) > 0 {
		st.AvgHitsPerQuery = float64(st.TotalHits) / float64(len(l.entries))
	}
	return st
}

// =============================================================================
// Similarity Helpers
// =============================================================================

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
