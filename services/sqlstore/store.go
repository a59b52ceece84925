// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlstore is the analytical warehouse collaborator: an embedded
// SQLite database holding the financial_orders and device_metrics tables
// the gateway queries. Timestamps are stored as TEXT in the
// "2006-01-02 15:04:05" layout so time-window predicates compare lexically.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// Executor is the narrow query capability the router depends on.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Executor interface {
	// Execute runs a read query and returns the full result set.
	Execute(ctx context.Context, query string) (*datatypes.Table, error)
}

const createTables = `
CREATE TABLE IF NOT EXISTS financial_orders (
	order_id INTEGER,
	customer TEXT,
	amount REAL,
	currency TEXT,
	ts TEXT,
	status TEXT
);
CREATE TABLE IF NOT EXISTS device_metrics (
	device_id TEXT,
	status TEXT,
	uptime_minutes REAL,
	location TEXT,
	ts TEXT
);
CREATE INDEX IF NOT EXISTS idx_financial_ts ON financial_orders(ts);
CREATE INDEX IF NOT EXISTS idx_devices_ts ON device_metrics(ts);
`

// tsLayout matches the layout used by the query compiler's time predicates.
const tsLayout = "2006-01-02 15:04:05"

// Store implements Executor on an embedded SQLite database.
//
// # Thread Safety
//
// Safe for concurrent use; database/sql manages the connection pool.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the warehouse at path and ensures the
// schema exists. logger may be nil.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}

	logger.Info("warehouse opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Execute implements Executor. Column order follows the query; row order
// follows the engine. Values come back as the driver returns them
// (int64, float64, string, nil).
func (s *Store) Execute(ctx context.Context, query string) (*datatypes.Table, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: execute: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: columns: %w", err)
	}

	table := &datatypes.Table{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		for i, v := range cells {
			if b, ok := v.([]byte); ok {
				cells[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate: %w", err)
	}
	return table, nil
}

// InsertFinancial appends one order row.
func (s *Store) InsertFinancial(ctx context.Context, orderID int64, customer string, amount float64, currency string, ts time.Time, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO financial_orders (order_id, customer, amount, currency, ts, status) VALUES (?, ?, ?, ?, ?, ?)`,
		orderID, customer, amount, currency, ts.UTC().Format(tsLayout), status,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert financial: %w", err)
	}
	return nil
}

// InsertDevice appends one telemetry row.
func (s *Store) InsertDevice(ctx context.Context, deviceID, status string, uptimeMinutes float64, location string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_metrics (device_id, status, uptime_minutes, location, ts) VALUES (?, ?, ?, ?, ?)`,
		deviceID, status, uptimeMinutes, location, ts.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert device: %w", err)
	}
	return nil
}

// Health verifies the database answers a trivial query.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlstore health: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ Executor = (*Store)(nil)
