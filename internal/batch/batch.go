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

// Package batch lists pending emails in the object store and processes
// each one independently. Emails run concurrently with no ordering
// guarantee and no shared mutable state; one email's failure never
// affects another's outcome.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bcem/dispatch/internal/pipeline"
	"github.com/bcem/dispatch/internal/store"
)

// Claimer guards against overlapping batch invocations processing the
// same source key. A nil Claimer disables claiming.
type Claimer interface {
	Claim(ctx context.Context, sourceKey string) (bool, error)
	Release(ctx context.Context, sourceKey string) error
}

// Processor runs one email through the pipeline.
type Processor interface {
	Process(ctx context.Context, content []byte, sourceKey string) (*pipeline.Result, error)
}

// KeyError pairs a failed source key with its error message.
type KeyError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Result summarises one batch run.
type Result struct {
	Successful []string
	Failed     []KeyError
	Skipped    int
	Elapsed    time.Duration
}

// Runner lists and processes pending emails.
type Runner struct {
	store     store.Store
	claimer   Claimer
	processor Processor
	prefix    string
}

// RunnerConfig holds dependencies for the batch runner.
type RunnerConfig struct {
	Store     store.Store
	Claimer   Claimer
	Processor Processor
	Prefix    string
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "incoming/"
	}
	return &Runner{
		store:     cfg.Store,
		claimer:   cfg.Claimer,
		processor: cfg.Processor,
		prefix:    prefix,
	}
}

// Run lists every pending email under the incoming prefix and processes
// each one in its own goroutine. The listing error is the only one that
// propagates; per-key failures are collected into the result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	objects, err := r.store.List(ctx, r.prefix)
	if err != nil {
		return nil, err
	}

	slog.Info("starting batch run",
		"prefix", r.prefix,
		"pending", len(objects),
	)

	type keyOutcome struct {
		key     string
		skipped bool
		err     error
	}

	outcomes := make([]keyOutcome, len(objects))

	var wg sync.WaitGroup
	for i, obj := range objects {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			skipped, err := r.processKey(ctx, key)
			outcomes[i] = keyOutcome{key: key, skipped: skipped, err: err}
		}(i, obj.Key)
	}
	wg.Wait()

	result := &Result{Elapsed: time.Since(start)}
	for _, o := range outcomes {
		switch {
		case o.skipped:
			result.Skipped++
		case o.err != nil:
			result.Failed = append(result.Failed, KeyError{Key: o.key, Error: o.err.Error()})
		default:
			result.Successful = append(result.Successful, o.key)
		}
	}

	slog.Info("batch run complete",
		"successful", len(result.Successful),
		"failed", len(result.Failed),
		"skipped", result.Skipped,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// processKey claims, fetches, and processes a single pending email. The
// claim is released on failure so a later batch retries the key.
func (r *Runner) processKey(ctx context.Context, key string) (skipped bool, err error) {
	if r.claimer != nil {
		fresh, err := r.claimer.Claim(ctx, key)
		if err != nil {
			slog.Warn("claim check failed, proceeding", "source_key", key, "error", err)
		} else if !fresh {
			slog.Debug("skipping already-claimed key", "source_key", key)
			return true, nil
		}
	}

	err = r.runOne(ctx, key)
	if err != nil && r.claimer != nil {
		if relErr := r.claimer.Release(ctx, key); relErr != nil {
			slog.Warn("claim release failed", "source_key", key, "error", relErr)
		}
	}
	return false, err
}

// RunOne fetches and processes a single key without a prior listing or
// claim. Used by the diagnostic entry points.
func (r *Runner) RunOne(ctx context.Context, key string) (*pipeline.Result, error) {
	content, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.processor.Process(ctx, content, key)
}

func (r *Runner) runOne(ctx context.Context, key string) error {
	content, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}
	_, err = r.processor.Process(ctx, content, key)
	return err
}
