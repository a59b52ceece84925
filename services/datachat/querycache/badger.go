// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package querycache

// Persistent backend for cache entries, stored in BadgerDB.
//
// Design choices:
//
//	1. BadgerDB (not the warehouse, not the vector store): cached responses
//	   are service infrastructure, not user data. An embedded store means no
//	   network call and no new availability dependency on the hot path.
//
//	2. Content-hash keys: the in-memory Learner already derives SHA-256 keys
//	   from normalized request content, so entries written before a restart
//	   remain addressable after it with no translation layer.
//
//	3. Badger native TTL: expiry is enforced by Badger's GC in addition to
//	   the Learner's own TTL check. Expired keys return ErrKeyNotFound,
//	   which the backend reports as a plain miss.
//
// Storage layout:
//
//	chat/resp/v1/{cacheKey}  →  gob-encoded Entry

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// BadgerKeyPrefix is prepended to the cache key to form the Badger key.
// Versioned (v1) to allow future format changes without collision.
const BadgerKeyPrefix = "chat/resp/v1/"

// BadgerBackend implements Backend on a BadgerDB instance opened by the
// caller (typically in main). The backend does not own the DB lifecycle.
//
// # Thread Safety
//
// Safe for concurrent use. Badger transactions are per-goroutine.
type BadgerBackend struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerBackend creates a BadgerBackend. Pass ttl <= 0 to use the
// cache's default TTL; logger may be nil.
func NewBadgerBackend(db *dgbadger.DB, ttl time.Duration, logger *slog.Logger) *BadgerBackend {
	if db == nil {
		panic("NewBadgerBackend: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerBackend{db: db, ttl: ttl, logger: logger}
}

// Load implements Backend. Returns (nil, nil) on miss (absent or expired).
func (b *BadgerBackend) Load(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := b.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cache backend load: %w", err)
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		return nil, fmt.Errorf("query cache backend decode: %w", err)
	}
	b.logger.Debug("query cache backend: hit", slog.String("key", shortKey(key)))
	return entry, nil
}

// Save implements Backend. The entry is written with the backend's TTL so
// Badger's GC reclaims it without application involvement.
func (b *BadgerBackend) Save(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("query cache backend encode: %w", err)
	}

	err = b.db.Update(func(txn *dgbadger.Txn) error {
		e := dgbadger.NewEntry(badgerKey(entry.Key), raw).WithTTL(b.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("query cache backend save: %w", err)
	}

	b.logger.Debug("query cache backend: saved",
		slog.String("key", shortKey(entry.Key)),
		slog.Duration("ttl", b.ttl),
	)
	return nil
}

// Delete implements Backend. Deleting an absent key is not an error.
func (b *BadgerBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("query cache backend delete: %w", err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func badgerKey(key string) []byte {
	return []byte(BadgerKeyPrefix + key)
}

// shortKey returns the first 8 characters of a key for log display.
func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8] + "..."
	}
	return k
}

func encodeEntry(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return &entry, nil
}
