// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// cache_dump inspects the DataChat gateway's persisted query cache.
//
// The query cache persists request→response entries in BadgerDB between
// gateway restarts. This tool opens the cache read-only and prints a
// human-readable summary: keys, source/mode, hit counts, TTL remaining,
// the cached SQL, and the payload size.
//
// Usage:
//
//	cache_dump [--path /path/to/cache/dir]
//
// If --path is not given, reads DATACHAT_CACHE_DIR from the environment,
// falling back to ./data/cache.
//
// Exit codes:
//
//	0 — success (including "empty cache" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"bytes"
	"encoding/gob"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/datachat/services/datachat/querycache"
)

func main() {
	pathFlag := flag.String("path", "", "Path to cache BadgerDB directory (overrides DATACHAT_CACHE_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("DATACHAT_CACHE_DIR")
	}
	if dbPath == "" {
		dbPath = "./data/cache"
	}

	fmt.Printf("Query cache path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. The gateway has not yet persisted any responses.")
		fmt.Println("Start the gateway with cache.dir configured to populate the cache.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	type record struct {
		key       string
		entry     *querycache.Entry
		expiresAt time.Time
		hasExpiry bool
		rawSize   int
		decodeErr error
	}

	var records []record

	err = db.View(func(txn *dgbadger.Txn) error {
		iopts := dgbadger.DefaultIteratorOptions
		iopts.PrefetchValues = true
		it := txn.NewIterator(iopts)
		defer it.Close()

		prefix := []byte(querycache.BadgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var r record
			r.key = strings.TrimPrefix(string(item.Key()), querycache.BadgerKeyPrefix)

			if expiresAt := item.ExpiresAt(); expiresAt > 0 {
				r.hasExpiry = true
				r.expiresAt = time.Unix(int64(expiresAt), 0)
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				r.decodeErr = fmt.Errorf("copy value: %w", err)
				records = append(records, r)
				continue
			}
			r.rawSize = len(raw)

			var entry querycache.Entry
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
				r.decodeErr = fmt.Errorf("gob decode: %w", err)
			} else {
				r.entry = &entry
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("\nNo cached responses found.")
		fmt.Println("The gateway has opened the cache but no cacheable responses have been produced yet.")
		os.Exit(0)
	}

	// Newest first.
	sort.Slice(records, func(i, j int) bool {
		if records[i].entry == nil || records[j].entry == nil {
			return records[i].key < records[j].key
		}
		return records[i].entry.CreatedAt.After(records[j].entry.CreatedAt)
	})

	fmt.Printf("\nFound %d cached entr%s:\n", len(records), plural(len(records), "y", "ies"))
	fmt.Println(strings.Repeat("─", 80))

	for i, r := range records {
		fmt.Printf("\n[%d] Key:      %s\n", i+1, shorten(r.key, 16))

		if r.hasExpiry {
			remaining := time.Until(r.expiresAt)
			if remaining < 0 {
				fmt.Printf("    TTL:      EXPIRED (%s ago)\n", (-remaining).Round(time.Second))
			} else {
				fmt.Printf("    TTL:      %s remaining (expires %s)\n",
					remaining.Round(time.Second),
					r.expiresAt.Format("2006-01-02 15:04:05 MST"),
				)
			}
		} else {
			fmt.Printf("    TTL:      no expiry set\n")
		}

		fmt.Printf("    Raw size: %s\n", formatBytes(r.rawSize))

		if r.decodeErr != nil {
			fmt.Printf("    DECODE ERROR: %v\n", r.decodeErr)
			continue
		}

		e := r.entry
		fmt.Printf("    Query:    %s\n", shorten(e.Query, 60))
		fmt.Printf("    Source:   %s   Mode: %s   Hits: %d\n", e.Source, e.Mode, e.HitCount)
		fmt.Printf("    Created:  %s\n", e.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		if e.SQL != "" {
			fmt.Printf("    SQL:      %s\n", shorten(strings.ReplaceAll(e.SQL, "\n", " "), 70))
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d entr%s, cache path: %s\n",
		len(records), plural(len(records), "y", "ies"), dbPath)
}

// shorten truncates s for display.
func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
