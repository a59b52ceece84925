// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package timewindow parses relative and absolute time phrases in a user
// message into a SQL filter predicate plus a human-readable label.
package timewindow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Filter is a resolved time window: a WHERE-clause fragment over the ts
// column plus a label suitable for display ("past 3 hours", "all time").
//
// A Filter is produced fresh per request and never persisted. The predicate
// is always a conjunct — callers AND it with existing filters, never replace
// them.
type Filter struct {
	Predicate string
	Label     string
}

// Tautology is the no-op filter returned when the message carries no time
// phrase. Its predicate keeps generated SQL shape-stable (WHERE is always
// present) without filtering anything.
var Tautology = Filter{Predicate: "1=1", Label: "all time"}

// relativePattern matches "past N <unit>" / "last N <unit>" case-insensitively.
// The first numeric match wins; multiple time phrases in one message are not
// reconciled.
var relativePattern = regexp.MustCompile(`(?i)\b(?:past|last)\s+(\d+)\s+(second|minute|hour|day|week|month)s?\b`)

// unitDurations converts a matched unit into a duration. Months are
// approximated as 30 days — a documented approximation carried over from the
// warehouse's reporting conventions, not a bug to fix.
var unitDurations = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
}

// tsFormat is the timestamp literal format used in predicates. Matches the
// TEXT encoding the SQL store writes, so lexical comparison is correct.
const tsFormat = "2006-01-02 15:04:05"

// Resolve parses the message against the current wall clock.
func Resolve(message string) Filter {
	return ResolveAt(message, time.Now().UTC())
}

// ResolveAt parses the message against an explicit evaluation time.
//
// Resolution order:
//  1. "past|last N <unit>" — cutoff is exactly N units before now.
//  2. the literal word "today" — day truncation of now.
//  3. neither — Tautology ("all time").
func ResolveAt(message string, now time.Time) Filter {
	if m := relativePattern.FindStringSubmatch(message); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			unit := strings.ToLower(m[2])
			cutoff := now.Add(-time.Duration(n) * unitDurations[unit])
			label := fmt.Sprintf("past %d %s", n, pluralize(unit, n))
			return Filter{
				Predicate: fmt.Sprintf("ts >= '%s'", cutoff.Format(tsFormat)),
				Label:     label,
			}
		}
	}

	if strings.Contains(strings.ToLower(message), "today") {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return Filter{
			Predicate: fmt.Sprintf("ts >= '%s'", dayStart.Format(tsFormat)),
			Label:     "today",
		}
	}

	return Tautology
}

func pluralize(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
