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

// Package record provides a Postgres-backed audit store for per-email
// processing records.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/dispatch/internal/models"
)

// Store persists processing records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a processing-record store backed by the given Postgres
// pool. It ensures the processing_records table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure processing_records schema: %w", err)
	}
	slog.Info("processing record store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processing_records (
			id               UUID PRIMARY KEY,
			source_key       TEXT NOT NULL,
			destination_key  TEXT DEFAULT '',
			status           TEXT NOT NULL,
			ticket_type      TEXT DEFAULT '',
			error            TEXT DEFAULT '',
			delivery_results JSONB DEFAULT '[]',
			duration_ms      BIGINT NOT NULL,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_records_source ON processing_records(source_key);
		CREATE INDEX IF NOT EXISTS idx_records_status ON processing_records(status);
		CREATE INDEX IF NOT EXISTS idx_records_created ON processing_records(created_at);
	`)
	return err
}

// Record inserts one processing record. Write-once; there is no update path.
func (s *Store) Record(ctx context.Context, r models.ProcessingRecord) error {
	deliveries, err := json.Marshal(r.DeliveryResults)
	if err != nil {
		return fmt.Errorf("marshal delivery results: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO processing_records
			(id, source_key, destination_key, status, ticket_type, error, delivery_results, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.SourceKey, r.DestinationKey, r.Status, r.TicketType, r.Error, deliveries, r.DurationMillis)
	return err
}

// ListRecent returns the most recent processing records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.ProcessingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_key, destination_key, status, ticket_type, error,
		       delivery_results, duration_ms, created_at
		FROM processing_records
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ProcessingRecord
	for rows.Next() {
		var r models.ProcessingRecord
		var deliveries []byte
		if err := rows.Scan(
			&r.ID, &r.SourceKey, &r.DestinationKey, &r.Status, &r.TicketType,
			&r.Error, &deliveries, &r.DurationMillis, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(deliveries, &r.DeliveryResults); err != nil {
			return nil, fmt.Errorf("unmarshal delivery results: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
