// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Demo vocabulary for seeded rows.
var (
	seedCustomers  = []string{"Acme LLC", "Globex", "Soylent", "Initech", "Umbrella", "Wayne"}
	seedCurrencies = []string{"USD", "EUR", "AED", "SAR"}
	seedStatuses   = []string{"PAID", "PENDING", "CANCELLED", "REFUNDED"}
	seedLocations  = []string{"DXB-01", "DXB-02", "AUH-01", "SHJ-01"}
	seedDevStates  = []string{"ONLINE", "ONLINE", "ONLINE", "DEGRADED", "OFFLINE"}
)

// Seed populates both tables with n demo rows each, spread over the 30 days
// before now. The generator is seeded with a fixed value so repeated runs
// produce the same dataset.
func (s *Store) Seed(ctx context.Context, n int, now time.Time) error {
	if n <= 0 {
		n = 500
	}
	rng := rand.New(rand.NewSource(42))
	window := 30 * 24 * time.Hour

	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(rng.Int63n(int64(window))))
		amount := 50 + rng.Float64()*4950
		err := s.InsertFinancial(ctx,
			int64(100000+i),
			seedCustomers[rng.Intn(len(seedCustomers))],
			float64(int(amount*100))/100,
			seedCurrencies[rng.Intn(len(seedCurrencies))],
			ts,
			seedStatuses[rng.Intn(len(seedStatuses))],
		)
		if err != nil {
			return fmt.Errorf("sqlstore: seed financial row %d: %w", i, err)
		}
	}

	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(rng.Int63n(int64(window))))
		uptime := rng.NormFloat64()*60 + 22*60
		if uptime < 0 {
			uptime = 0
		}
		err := s.InsertDevice(ctx,
			fmt.Sprintf("dev-%d", 1000+rng.Intn(1000)),
			seedDevStates[rng.Intn(len(seedDevStates))],
			float64(int(uptime*100))/100,
			seedLocations[rng.Intn(len(seedLocations))],
			ts,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: seed device row %d: %w", i, err)
		}
	}

	s.logger.Info("demo data seeded", "rows_per_table", n)
	return nil
}
