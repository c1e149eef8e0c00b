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

// Package archive relocates processed emails to an outcome-keyed location.
// The move is copy-then-delete: the original is only removed after the
// copy succeeds, so a partial failure leaves a duplicate rather than a
// data loss. This move is the pipeline's sole durability boundary:
// before it succeeds, the source object is the only copy of record.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bcem/dispatch/internal/models"
	"github.com/bcem/dispatch/internal/store"
)

const (
	processedPrefix = "processed"
	errorPrefix     = "errors"

	categoryServiceRequest    = "service_requests"
	categoryNonServiceRequest = "non_service_requests"
)

// Error reports that the source object was not cleanly relocated. ErrorKey
// holds the best-effort error-folder copy, empty if that copy also failed.
type Error struct {
	SourceKey string
	ErrorKey  string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s: %v", e.SourceKey, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Mover relocates processed source objects by outcome and time.
type Mover struct {
	store store.Store
	now   func() time.Time
}

// NewMover creates an archive mover over the given object store.
func NewMover(st store.Store) *Mover {
	return &Mover{store: st, now: time.Now}
}

// Move copies the source object to its outcome-keyed destination and then
// deletes the original. On any failure it attempts a best-effort copy to
// the error location before returning an *Error.
func (m *Mover) Move(ctx context.Context, srcKey string, serviceRequest bool, t *models.Ticket, received time.Time) (string, error) {
	if received.IsZero() {
		received = m.now().UTC()
	}

	dstKey := m.destinationKey(srcKey, serviceRequest, t, received)

	if err := m.store.Copy(ctx, srcKey, dstKey); err != nil {
		return "", m.fail(ctx, srcKey, fmt.Errorf("copy to destination: %w", err))
	}

	if err := m.store.Delete(ctx, srcKey); err != nil {
		return "", m.fail(ctx, srcKey, fmt.Errorf("delete original after copy: %w", err))
	}

	slog.Info("archived email",
		"source_key", srcKey,
		"destination_key", dstKey,
	)

	return dstKey, nil
}

// fail copies the source into the error folder (best effort) and wraps
// the cause so the caller knows the source was not cleanly relocated.
func (m *Mover) fail(ctx context.Context, srcKey string, cause error) error {
	errKey := fmt.Sprintf("%s/%s_%d", errorPrefix, keyTail(srcKey), m.now().UTC().UnixMilli())

	if copyErr := m.store.Copy(ctx, srcKey, errKey); copyErr != nil {
		slog.Error("error-folder copy failed",
			"source_key", srcKey,
			"error_key", errKey,
			"error", copyErr,
		)
		errKey = ""
	}

	return &Error{SourceKey: srcKey, ErrorKey: errKey, Err: cause}
}

// destinationKey builds
// processed/<tenant>/<category>/<YYYY-MM>/<slug> for the given outcome.
func (m *Mover) destinationKey(srcKey string, serviceRequest bool, t *models.Ticket, received time.Time) string {
	category := categoryNonServiceRequest
	if serviceRequest {
		category = categoryServiceRequest
	}

	return strings.Join([]string{
		processedPrefix,
		tenantOf(srcKey),
		category,
		received.UTC().Format("2006-01"),
		filenameSlug(srcKey, t, received),
	}, "/")
}

// filenameSlug derives the archived filename from the email's timestamp,
// ticket location, system type, urgency, and the original identifier tail.
func filenameSlug(srcKey string, t *models.Ticket, received time.Time) string {
	location := "unknown_location"
	system := "general"
	urgency := "normal"

	if t != nil {
		if t.Location != nil {
			var parts []string
			if t.Location.City != nil && *t.Location.City != "" {
				parts = append(parts, *t.Location.City)
			}
			if t.Location.State != nil && *t.Location.State != "" {
				parts = append(parts, *t.Location.State)
			}
			if len(parts) > 0 {
				location = strings.Join(parts, "_")
			}
		}
		if t.SystemType != nil {
			system = string(*t.SystemType)
		}
		if t.Urgency != nil {
			urgency = string(*t.Urgency)
		}
	}

	parts := []string{
		received.UTC().Format("2006-01-02"),
		location,
		system,
		urgency,
		keyTail(srcKey),
	}

	return slugify(strings.Join(parts, "_"))
}

// tenantOf extracts the tenant segment from an incoming/<tenant>/<id> key.
func tenantOf(srcKey string) string {
	parts := strings.Split(srcKey, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return "default"
}

// keyTail returns the final path segment of a key.
func keyTail(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// slugify lower-cases and collapses non-alphanumeric runs to single
// underscores, trimming any at the edges.
func slugify(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	lastUnderscore := true // swallow leading separators
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	return strings.TrimRight(b.String(), "_")
}
