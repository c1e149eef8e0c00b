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

// Dispatch service-request email processing server.
//
// Entry point for the dispatch service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL (audit records) and Redis (batch claims)
//  3. Builds the object store, classifier, and SMS transport clients
//  4. Serves the batch and single-email processing endpoints
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bcem/dispatch/internal/archive"
	"github.com/bcem/dispatch/internal/batch"
	"github.com/bcem/dispatch/internal/classify"
	"github.com/bcem/dispatch/internal/config"
	"github.com/bcem/dispatch/internal/dedup"
	"github.com/bcem/dispatch/internal/metrics"
	"github.com/bcem/dispatch/internal/notify"
	"github.com/bcem/dispatch/internal/pipeline"
	"github.com/bcem/dispatch/internal/record"
	"github.com/bcem/dispatch/internal/retry"
	"github.com/bcem/dispatch/internal/server"
	"github.com/bcem/dispatch/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting dispatch service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"bucket", cfg.Store.Bucket,
		"incoming_prefix", cfg.Store.IncomingPrefix,
		"recipients", len(cfg.Recipients()),
		"classifier_model", cfg.Classifier.Model,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	records, err := record.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise record store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	filter := dedup.NewFilter(rdb)
	if err := filter.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

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

	// --- Classifier Client ---
	classifier := classify.NewClient(classify.ClientConfig{
		HTTPClient: classifierHTTPClient(ctx, cfg.Classifier),
		BaseURL:    cfg.Classifier.BaseURL,
		APIKey:     cfg.Classifier.APIKey,
		Model:      cfg.Classifier.Model,
	})

	// --- SMS Sender ---
	sender := notify.NewSender(notify.SenderConfig{
		APIURL: cfg.SMS.APIURL,
		APIKey: cfg.SMS.APIKey,
		From:   cfg.SMS.From,
	})

	// --- Pipeline ---
	metrics.Register()

	pipe := pipeline.New(pipeline.Config{
		Classifier: classifier,
		Sender:     sender,
		Archiver:   archive.NewMover(objects),
		Sink:       records,
		Recipients: cfg.Recipients(),
		Retry:      retry.Config{BaseDelay: cfg.RetryBaseDelay},
	})

	runner := batch.NewRunner(batch.RunnerConfig{
		Store:     objects,
		Claimer:   filter,
		Processor: pipe,
		Prefix:    cfg.Store.IncomingPrefix,
	})

	// --- HTTP Server ---
	handler := server.NewHandler(runner, map[string]server.Pinger{
		"postgres": records,
		"redis":    filter,
	})
	ready, err := server.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("dispatch service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // Stop the http server and in-flight batch work

	// Give in-flight requests a moment to drain before closing backends.
	time.Sleep(2 * time.Second)

	rdb.Close()
	pgPool.Close()

	slog.Info("dispatch service stopped")
}

// classifierHTTPClient builds the HTTP client for the classifier. With
// Entra credentials configured (Azure-hosted deployments) it carries
// client-credentials tokens; otherwise nil so the classifier falls back
// to its API-key default.
func classifierHTTPClient(ctx context.Context, cc config.ClassifierConfig) *http.Client {
	if !cc.UseClientCredentials() {
		return nil
	}

	creds := &clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cc.TenantID),
		Scopes:       []string{"https://cognitiveservices.azure.com/.default"},
	}
	return creds.Client(ctx)
}
