// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// MemoryStore implements Store with an in-process map. The default driver:
// history is per-process state, which is the documented scope of this
// gateway (no horizontal scaling of conversation memory).
//
// # Thread Safety
//
// A single mutex guards the whole map. Append-then-trim runs under the lock
// as one critical section, so concurrent appends to the same session cannot
// interleave and break the retention bound.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]datatypes.Turn
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]datatypes.Turn)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turn datatypes.Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], turn)
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	s.sessions[sessionID] = turns
	return nil
}

// History implements Store. The returned slice is a copy; callers may not
// mutate stored history through it.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]datatypes.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[sessionID]
	out := make([]datatypes.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TotalSessions: len(s.sessions)}
	cutoff := time.Now().Add(-activeWindow)
	for _, turns := range s.sessions {
		st.TotalMessages += len(turns)
		if len(turns) > 0 && turns[len(turns)-1].Timestamp.After(cutoff) {
			st.ActiveSessions++
		}
	}
	return st, nil
}
