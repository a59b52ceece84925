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
	"errors"
	"testing"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

func TestNormalizeRejectsMutatingSQL(t *testing.T) {
	mutating := []string{
		"DROP TABLE financial_orders",
		"DELETE FROM financial_orders WHERE 1=1",
		"update financial_orders set amount = 0",
		"INSERT INTO financial_orders VALUES (1)",
		"ALTER TABLE device_metrics ADD COLUMN x",
		"SELECT 1; DROP TABLE financial_orders",
	}

	for _, sql := range mutating {
		t.Run(sql, func(t *testing.T) {
			_, err := Normalize(sql, "question", datatypes.SourceFinancial, testNow)
			if !errors.Is(err, ErrUnsafeSQL) {
				t.Errorf("Normalize(%q) error = %v, want ErrUnsafeSQL", sql, err)
			}
		})
	}
}

func TestNormalizeWholeWordMatchOnly(t *testing.T) {
	// Column names containing forbidden substrings must not trip the gate.
	got, err := Normalize("SELECT last_update_note FROM financial_orders", "q", datatypes.SourceFinancial, testNow)
	if err != nil {
		t.Fatalf("Normalize returned error for safe SQL: %v", err)
	}
	if want := "SELECT last_update_note FROM financial_orders;"; got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeTableSynonyms(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		source datatypes.Source
		want   string
	}{
		{
			name:   "orders to canonical financial table",
			sql:    "SELECT * FROM orders",
			source: datatypes.SourceFinancial,
			want:   "SELECT * FROM financial_orders;",
		},
		{
			name:   "devices to canonical metrics table",
			sql:    "SELECT status FROM devices",
			source: datatypes.SourceDevices,
			want:   "SELECT status FROM device_metrics;",
		},
		{
			name:   "rewrite is case insensitive",
			sql:    "SELECT COUNT(*) FROM Orders",
			source: datatypes.SourceFinancial,
			want:   "SELECT COUNT(*) FROM financial_orders;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.sql, "q", tt.source, testNow)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeSingleStatement(t *testing.T) {
	got, err := Normalize("SELECT 1; SELECT 2;", "q", datatypes.SourceFinancial, testNow)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if want := "SELECT 1;"; got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if _, err := Normalize("   ", "q", datatypes.SourceFinancial, testNow); err == nil {
		t.Error("Normalize accepted empty SQL")
	}
}

func TestNormalizeTodayInjection(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		message string
		want    string
	}{
		{
			name:    "no where clause",
			sql:     "SELECT COUNT(*) AS c FROM financial_orders",
			message: "how many orders today",
			want:    "SELECT COUNT(*) AS c FROM financial_orders WHERE ts >= '2025-06-15 00:00:00';",
		},
		{
			name:    "existing where gets conjunct",
			sql:     "SELECT * FROM financial_orders WHERE amount > 5",
			message: "orders over 5 today",
			want:    "SELECT * FROM financial_orders WHERE amount > 5 AND ts >= '2025-06-15 00:00:00';",
		},
		{
			name:    "predicate lands before group by",
			sql:     "SELECT status, COUNT(*) FROM financial_orders GROUP BY status",
			message: "status breakdown today",
			want:    "SELECT status, COUNT(*) FROM financial_orders WHERE ts >= '2025-06-15 00:00:00' GROUP BY status;",
		},
		{
			name:    "existing ts bound left alone",
			sql:     "SELECT * FROM financial_orders WHERE ts >= '2025-06-15 00:00:00'",
			message: "orders today",
			want:    "SELECT * FROM financial_orders WHERE ts >= '2025-06-15 00:00:00';",
		},
		{
			name:    "no today in message means no injection",
			sql:     "SELECT COUNT(*) FROM financial_orders",
			message: "how many orders",
			want:    "SELECT COUNT(*) FROM financial_orders;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.sql, tt.message, datatypes.SourceFinancial, testNow)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "fenced sql block",
			text: "Here you go:\n```sql\nSELECT * FROM financial_orders\n```\nLet me know.",
			want: "SELECT * FROM financial_orders",
		},
		{
			name: "unfenced prose around sql lines",
			text: "The query is:\nSELECT customer, SUM(amount)\nFROM financial_orders\nWHERE status = 'PAID'\nHope that helps!",
			want: "SELECT customer, SUM(amount)\nFROM financial_orders\nWHERE status = 'PAID'",
		},
		{
			name: "no sql at all",
			text: "I cannot answer that question.",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSQL(tt.text); got != tt.want {
				t.Errorf("ExtractSQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddLimit(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		message string
		want    string
	}{
		{
			name:    "limit appended from message",
			sql:     "SELECT * FROM financial_orders;",
			message: "top 5 customers",
			want:    "SELECT * FROM financial_orders LIMIT 5;",
		},
		{
			name:    "existing limit untouched",
			sql:     "SELECT * FROM financial_orders LIMIT 3;",
			message: "top 5 customers",
			want:    "SELECT * FROM financial_orders LIMIT 3;",
		},
		{
			name:    "no count in message",
			sql:     "SELECT * FROM financial_orders;",
			message: "all orders",
			want:    "SELECT * FROM financial_orders;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddLimit(tt.sql, tt.message); got != tt.want {
				t.Errorf("AddLimit = %q, want %q", got, tt.want)
			}
		})
	}
}
