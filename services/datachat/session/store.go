// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session stores bounded per-session conversation history. The
// router uses it to build prompt context and to seed cache keys.
//
// Two drivers are provided: an in-process map (the default) and Redis (for
// deployments that want history to survive restarts). The retention policy
// lives in the drivers, not the router: every Append trims the session to
// the most recent maxTurns entries, oldest first.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// maxTurns bounds each session's history. On append, the oldest turn is
// dropped from the front once the bound is exceeded.
const maxTurns = 10

// Store is the conversation-history capability the router depends on.
//
// # Thread Safety
//
// Implementations must serialize the append-then-trim sequence per session:
// concurrent Appends to the same session must not lose turns or leave the
// session over the bound.
type Store interface {
	// Append adds a turn to the session, creating the session on first use
	// and trimming it to the retention bound.
	Append(ctx context.Context, sessionID string, turn datatypes.Turn) error

	// History returns the session's turns in insertion order. An unknown
	// session yields an empty slice, not an error.
	History(ctx context.Context, sessionID string) ([]datatypes.Turn, error)

	// Clear removes the session entirely. Returns false (and no error) when
	// the session does not exist.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// Stats summarizes the store for the stats endpoint.
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the store's current occupancy.
type Stats struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
	TotalMessages  int `json:"total_messages"`
}

// activeWindow is the recency cutoff for counting a session as active.
const activeWindow = 24 * time.Hour

// ContextWindow formats the last n turns of a session as prompt context,
// one "Role: text" line per turn. Returns "" for an unknown or empty
// session.
func ContextWindow(ctx context.Context, s Store, sessionID string, n int) (string, error) {
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("session context: %w", err)
	}
	if len(turns) == 0 {
		return "", nil
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, capitalize(t.Role)+": "+t.Text)
	}
	return strings.Join(lines, "\n"), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
