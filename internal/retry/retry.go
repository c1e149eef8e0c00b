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

// Package retry wraps fallible operations with bounded exponential
// backoff. No jitter is applied; acceptable for low-volume batch use.
package retry

import (
	"context"
	"time"
)

const (
	// DefaultMaxAttempts bounds how many times an operation runs.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the wait after the first failure; it doubles
	// after each subsequent one.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Config tunes a retry loop. The zero value uses the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	return c
}

// Do invokes fn until it succeeds or the attempt bound is exhausted,
// waiting base * 2^attempt between attempts (attempt counting from 0).
// After exhausting attempts it returns the last observed error unwrapped,
// so the caller can still match its kind. The wait is context-aware.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.BaseDelay << attempt
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
