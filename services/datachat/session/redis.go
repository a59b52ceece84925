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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// redisKeyPrefix namespaces session keys in a shared Redis instance.
const redisKeyPrefix = "datachat:session:"

// redisDefaultTTL expires idle sessions. Refreshed on every append.
const redisDefaultTTL = 24 * time.Hour

// RedisStore implements Store on Redis, for deployments where conversation
// memory should survive a gateway restart. The retention policy is the same
// as MemoryStore; Redis only changes where the turns live.
//
// # Thread Safety
//
// The append-then-trim sequence runs inside a WATCH transaction on the
// session key, so two gateway processes appending to the same session
// cannot lose turns. Within one process the client is safe for concurrent
// use.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client. Pass ttl <= 0 for the
// default (24h).
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = redisDefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turn datatypes.Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	key := redisKey(sessionID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		turns, err := s.load(ctx, tx.Get(ctx, key))
		if err != nil {
			return err
		}

		turns = append(turns, turn)
		if len(turns) > maxTurns {
			turns = turns[len(turns)-maxTurns:]
		}

		raw, err := json.Marshal(turns)
		if err != nil {
			return fmt.Errorf("marshal turns: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("session append: %w", err)
	}
	return nil
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]datatypes.Turn, error) {
	turns, err := s.load(ctx, s.client.Get(ctx, redisKey(sessionID)))
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	return turns, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, redisKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session clear: %w", err)
	}
	return n > 0, nil
}

// Stats implements Store. SCAN-based; intended for the stats endpoint, not
// hot paths.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	cutoff := time.Now().Add(-activeWindow)

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		turns, err := s.load(ctx, s.client.Get(ctx, iter.Val()))
		if err != nil {
			return Stats{}, fmt.Errorf("session stats: %w", err)
		}
		st.TotalSessions++
		st.TotalMessages += len(turns)
		if len(turns) > 0 && turns[len(turns)-1].Timestamp.After(cutoff) {
			st.ActiveSessions++
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("session stats scan: %w", err)
	}
	return st, nil
}

// load decodes a session value, treating a missing key as an empty session.
func (s *RedisStore) load(ctx context.Context, cmd *redis.StringCmd) ([]datatypes.Turn, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var turns []datatypes.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	return turns, nil
}
