// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup provides source-key claims backed by a Redis SET with TTL.
// Overlapping batch invocations may list the same pending object; the
// claim ensures only one of them processes it. A claim released after a
// failure lets the next batch retry the email.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a claim is remembered. Successfully
	// processed objects leave the incoming prefix anyway; the TTL only
	// bounds how long a crashed run can block reprocessing.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces claim keys in Redis.
	keyPrefix = "dispatch:seen:"
)

// Filter tracks which source keys have already been claimed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a claim filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Claim returns true if the source key was NOT claimed before. If true,
// the key is marked as claimed atomically (SETNX).
func (f *Filter) Claim(ctx context.Context, sourceKey string) (bool, error) {
	key := fmt.Sprintf("%s%s", keyPrefix, sourceKey)

	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim SETNX: %w", err)
	}

	return set, nil
}

// Release drops a claim so a later batch can retry the key.
func (f *Filter) Release(ctx context.Context, sourceKey string) error {
	key := fmt.Sprintf("%s%s", keyPrefix, sourceKey)

	if err := f.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return f.rdb.Ping(ctx).Err()
}
