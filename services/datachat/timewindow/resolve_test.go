// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timewindow

import (
	"testing"
	"time"
)

// A fixed evaluation time keeps predicate literals deterministic.
var testNow = time.Date(2025, 6, 15, 14, 30, 45, 0, time.UTC)

func TestResolveAtRelative(t *testing.T) {
	tests := []struct {
		name          string
		message       string
		wantPredicate string
		wantLabel     string
	}{
		{
			name:          "past hours exact cutoff",
			message:       "how many orders in the past 3 hours",
			wantPredicate: "ts >= '2025-06-15 11:30:45'",
			wantLabel:     "past 3 hours",
		},
		{
			name:          "last days",
			message:       "revenue over the last 7 days",
			wantPredicate: "ts >= '2025-06-08 14:30:45'",
			wantLabel:     "past 7 days",
		},
		{
			name:          "singular unit label",
			message:       "uptime in the past 1 hour",
			wantPredicate: "ts >= '2025-06-15 13:30:45'",
			wantLabel:     "past 1 hour",
		},
		{
			name:          "month approximated as 30 days",
			message:       "orders in the last 1 month",
			wantPredicate: "ts >= '2025-05-16 14:30:45'",
			wantLabel:     "past 1 month",
		},
		{
			name:          "first numeric match wins",
			message:       "past 2 hours or last 5 days",
			wantPredicate: "ts >= '2025-06-15 12:30:45'",
			wantLabel:     "past 2 hours",
		},
		{
			name:          "case insensitive",
			message:       "PAST 10 MINUTES of telemetry",
			wantPredicate: "ts >= '2025-06-15 14:20:45'",
			wantLabel:     "past 10 minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAt(tt.message, testNow)
			if got.Predicate != tt.wantPredicate {
				t.Errorf("predicate = %q, want %q", got.Predicate, tt.wantPredicate)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}

func TestResolveAtToday(t *testing.T) {
	got := ResolveAt("how many orders today", testNow)
	if want := "ts >= '2025-06-15 00:00:00'"; got.Predicate != want {
		t.Errorf("predicate = %q, want %q", got.Predicate, want)
	}
	if got.Label != "today" {
		t.Errorf("label = %q, want %q", got.Label, "today")
	}
}

func TestResolveAtRelativeBeatsToday(t *testing.T) {
	// When both phrases appear, the relative window wins.
	got := ResolveAt("past 2 hours of orders today", testNow)
	if want := "ts >= '2025-06-15 12:30:45'"; got.Predicate != want {
		t.Errorf("predicate = %q, want %q", got.Predicate, want)
	}
}

func TestResolveAtTautology(t *testing.T) {
	got := ResolveAt("total revenue by customer", testNow)
	if got != Tautology {
		t.Errorf("ResolveAt = %+v, want Tautology", got)
	}
	if Tautology.Predicate != "1=1" || Tautology.Label != "all time" {
		t.Errorf("Tautology = %+v", Tautology)
	}
}
