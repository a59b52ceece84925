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
	"fmt"
	"testing"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Append(ctx, "s1", datatypes.Turn{Role: "user", Text: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "s1", datatypes.Turn{Role: "assistant", Text: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	turns, err := s.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "hello" {
		t.Errorf("turns[0] = %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Text != "hi" {
		t.Errorf("turns[1] = %+v", turns[1])
	}
	if turns[0].Timestamp.IsZero() {
		t.Error("Append did not stamp the turn")
	}
}

func TestMemoryStoreRetentionBound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 15; i++ {
		turn := datatypes.Turn{Role: "user", Text: fmt.Sprintf("message %d", i)}
		if err := s.Append(ctx, "s1", turn); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	turns, err := s.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 10 {
		t.Fatalf("len(turns) = %d, want retention bound 10", len(turns))
	}
	// The oldest turns fall off the front.
	if turns[0].Text != "message 5" {
		t.Errorf("turns[0].Text = %q, want %q", turns[0].Text, "message 5")
	}
	if turns[9].Text != "message 14" {
		t.Errorf("turns[9].Text = %q, want %q", turns[9].Text, "message 14")
	}
}

func TestMemoryStoreHistoryUnknownSession(t *testing.T) {
	s := NewMemoryStore()
	turns, err := s.History(context.Background(), "missing")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("len(turns) = %d, want 0", len(turns))
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Append(ctx, "s1", datatypes.Turn{Role: "user", Text: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cleared, err := s.Clear(ctx, "s1")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !cleared {
		t.Error("Clear(existing) = false, want true")
	}

	cleared, err = s.Clear(ctx, "s1")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared {
		t.Error("Clear(cleared) = true, want false")
	}

	turns, _ := s.History(ctx, "s1")
	if len(turns) != 0 {
		t.Errorf("history not empty after Clear: %d turns", len(turns))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Append(ctx, "s1", datatypes.Turn{Role: "user", Text: "a"})
	_ = s.Append(ctx, "s1", datatypes.Turn{Role: "assistant", Text: "b"})
	_ = s.Append(ctx, "s2", datatypes.Turn{Role: "user", Text: "c"})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", st.TotalSessions)
	}
	if st.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", st.TotalMessages)
	}
	// Fresh appends are inside the active window.
	if st.ActiveSessions != 2 {
		t.Errorf("ActiveSessions = %d, want 2", st.ActiveSessions)
	}
}

func TestContextWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_ = s.Append(ctx, "s1", datatypes.Turn{Role: "user", Text: "first question"})
	_ = s.Append(ctx, "s1", datatypes.Turn{Role: "assistant", Text: "first answer"})
	_ = s.Append(ctx, "s1", datatypes.Turn{Role: "user", Text: "second question"})

	got, err := ContextWindow(ctx, s, "s1", 2)
	if err != nil {
		t.Fatalf("ContextWindow: %v", err)
	}
	want := "Assistant: first answer\nUser: second question"
	if got != want {
		t.Errorf("ContextWindow = %q, want %q", got, want)
	}

	empty, err := ContextWindow(ctx, s, "missing", 3)
	if err != nil {
		t.Fatalf("ContextWindow: %v", err)
	}
	if empty != "" {
		t.Errorf("ContextWindow(unknown) = %q, want empty", empty)
	}
}
