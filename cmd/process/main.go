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

// Single-email processing command for diagnostics.
//
// Standalone CLI tool that fetches one pending email by object key and
// runs it through the full pipeline. Intended for diagnosing a stuck or
// misclassified email without a batch run.
//
// Usage:
//
//	go run ./cmd/process/ --key incoming/acme/abc123.eml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/dispatch/internal/archive"
	"github.com/bcem/dispatch/internal/batch"
	"github.com/bcem/dispatch/internal/classify"
	"github.com/bcem/dispatch/internal/config"
	"github.com/bcem/dispatch/internal/metrics"
	"github.com/bcem/dispatch/internal/notify"
	"github.com/bcem/dispatch/internal/pipeline"
	"github.com/bcem/dispatch/internal/record"
	"github.com/bcem/dispatch/internal/retry"
	"github.com/bcem/dispatch/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	keyFlag := flag.String("key", "", "Object key to process (required), e.g. incoming/acme/abc123.eml")
	flag.Parse()

	if *keyFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --key is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	records, err := record.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise record store", "error", err)
		os.Exit(1)
	}

	// --- Object Store ---
	objects, err := store.NewS3Store(ctx, store.S3Config{
		Bucket:   cfg.Store.Bucket,
		Region:   cfg.Store.Region,
		Endpoint: cfg.Store.Endpoint,
	})
	if err != nil {
		slog.Error("failed to build object store client", "error", err)
		os.Exit(1)
	}

	// --- Pipeline ---
	metrics.Register()

	pipe := pipeline.New(pipeline.Config{
		Classifier: classify.NewClient(classify.ClientConfig{
			BaseURL: cfg.Classifier.BaseURL,
			APIKey:  cfg.Classifier.APIKey,
			Model:   cfg.Classifier.Model,
		}),
		Sender: notify.NewSender(notify.SenderConfig{
			APIURL: cfg.SMS.APIURL,
			APIKey: cfg.SMS.APIKey,
			From:   cfg.SMS.From,
		}),
		Archiver:   archive.NewMover(objects),
		Sink:       records,
		Recipients: cfg.Recipients(),
		Retry:      retry.Config{BaseDelay: cfg.RetryBaseDelay},
	})

	runner := batch.NewRunner(batch.RunnerConfig{
		Store:     objects,
		Processor: pipe,
		Prefix:    cfg.Store.IncomingPrefix,
	})

	// --- Run ---
	result, err := runner.RunOne(ctx, *keyFlag)
	if err != nil {
		slog.Error("processing failed", "source_key", *keyFlag, "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	slog.Info("processing complete",
		"source_key", *keyFlag,
		"destination_key", result.DestinationKey,
		"ticket_type", result.Ticket.Type,
		"subject", result.Email.Subject,
		"elapsed", result.Elapsed,
	)

	for _, d := range result.Deliveries {
		slog.Info("delivery result",
			"destination", d.Destination,
			"success", d.Success,
			"error", d.Error,
		)
	}
}
