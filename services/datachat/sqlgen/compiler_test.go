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
	"testing"
	"time"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

var testNow = time.Date(2025, 6, 15, 14, 30, 45, 0, time.UTC)

func TestTableFor(t *testing.T) {
	if got := TableFor(datatypes.SourceFinancial); got != "financial_orders" {
		t.Errorf("TableFor(financial) = %q", got)
	}
	if got := TableFor(datatypes.SourceDevices); got != "device_metrics" {
		t.Errorf("TableFor(devices) = %q", got)
	}
	if got := TableFor(datatypes.Source("bogus")); got != "financial_orders" {
		t.Errorf("TableFor(bogus) = %q, want financial default", got)
	}
}

func TestExtractLimit(t *testing.T) {
	tests := []struct {
		message string
		want    int
	}{
		{"top 5 customers", 5},
		{"first 10 orders", 10},
		{"limit 3", 3},
		{"show 7 devices", 7},
		{"give me 20 results", 20},
		{"how many orders today", 0},
		{"top customers", 0},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := ExtractLimit(tt.message); got != tt.want {
				t.Errorf("ExtractLimit(%q) = %d, want %d", tt.message, got, tt.want)
			}
		})
	}
}

func TestCompileFinancial(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "order count with day filter",
			message: "how many orders today",
			want:    "SELECT COUNT(*) AS order_count FROM financial_orders WHERE ts >= '2025-06-15 00:00:00';",
		},
		{
			name:    "total revenue all time",
			message: "what is our total revenue",
			want:    "SELECT COALESCE(SUM(amount), 0) AS total_revenue FROM financial_orders WHERE 1=1 AND amount IS NOT NULL;",
		},
		{
			name:    "revenue grouped by customer",
			message: "revenue by customer",
			want:    "SELECT customer, COALESCE(SUM(amount), 0) AS total_revenue FROM financial_orders WHERE 1=1 AND amount IS NOT NULL GROUP BY customer ORDER BY total_revenue DESC;",
		},
		{
			name:    "top customers carry the limit",
			message: "top 5 customers by revenue",
			want:    "SELECT customer, COALESCE(SUM(amount), 0) AS total_revenue FROM financial_orders WHERE 1=1 AND amount IS NOT NULL GROUP BY customer ORDER BY total_revenue DESC LIMIT 5;",
		},
		{
			name:    "average order value",
			message: "average order amount",
			want:    "SELECT AVG(amount) AS average_order_value FROM financial_orders WHERE 1=1;",
		},
		{
			name:    "status breakdown",
			message: "breakdown of paid vs refunded",
			want:    "SELECT status, COUNT(*) AS order_count FROM financial_orders WHERE 1=1 GROUP BY status ORDER BY order_count DESC;",
		},
		{
			name:    "relative window flows into predicate",
			message: "how many orders in the past 3 hours",
			want:    "SELECT COUNT(*) AS order_count FROM financial_orders WHERE ts >= '2025-06-15 11:30:45';",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compile(tt.message, datatypes.SourceFinancial, testNow)
			if !ok {
				t.Fatalf("Compile(%q) did not match, want %q", tt.message, tt.want)
			}
			if got != tt.want {
				t.Errorf("Compile(%q) =\n  %q\nwant\n  %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestCompileDevices(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "average uptime by location",
			message: "average uptime by location",
			want:    "SELECT location, AVG(uptime_minutes) AS average_uptime_minutes FROM device_metrics WHERE 1=1 GROUP BY location ORDER BY average_uptime_minutes DESC;",
		},
		{
			name:    "overall average uptime",
			message: "what is the average uptime",
			want:    "SELECT AVG(uptime_minutes) AS average_uptime_minutes FROM device_metrics WHERE 1=1;",
		},
		{
			name:    "distinct device count with window",
			message: "how many devices reported in the past 2 days",
			want:    "SELECT COUNT(DISTINCT device_id) AS device_count FROM device_metrics WHERE ts >= '2025-06-13 14:30:45';",
		},
		{
			name:    "status breakdown",
			message: "devices online vs offline",
			want:    "SELECT status, COUNT(*) AS device_count FROM device_metrics WHERE 1=1 GROUP BY status ORDER BY device_count DESC;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compile(tt.message, datatypes.SourceDevices, testNow)
			if !ok {
				t.Fatalf("Compile(%q) did not match, want %q", tt.message, tt.want)
			}
			if got != tt.want {
				t.Errorf("Compile(%q) =\n  %q\nwant\n  %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestCompileUnrecognized(t *testing.T) {
	unmatched := []string{
		"tell me about the data",
		"what tables exist",
		"explain the warehouse layout",
	}
	for _, m := range unmatched {
		if sql, ok := Compile(m, datatypes.SourceFinancial, testNow); ok {
			t.Errorf("Compile(%q) matched unexpectedly: %q", m, sql)
		}
	}
}
