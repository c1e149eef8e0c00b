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

// Package pipeline orchestrates one email's run: parse, classify, validate,
// fan out notifications, archive, and emit the processing record. Statuses
// progress started -> parsed -> analyzed -> completed; a failed run keeps
// the last status it reached, with the error alongside.
//
// Notification sends to distinct recipients run concurrently and each
// failure is contained to its recipient. Archival strictly happens after
// every send has resolved, so an email is never archived before its
// notifications were at least attempted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/dispatch/internal/classify"
	"github.com/bcem/dispatch/internal/metrics"
	"github.com/bcem/dispatch/internal/models"
	"github.com/bcem/dispatch/internal/phone"
	"github.com/bcem/dispatch/internal/retry"
	"github.com/bcem/dispatch/internal/ticket"
)

// ErrInvalidInput is returned when content or source key is missing.
var ErrInvalidInput = errors.New("email content and source key are required")

// ParseError marks a malformed email. Fatal for that email, never retried.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse email: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Sender is the notification capability the pipeline consumes.
type Sender interface {
	Send(ctx context.Context, message, destination string) error
}

// Archiver relocates the source object once processing is done.
type Archiver interface {
	Move(ctx context.Context, srcKey string, serviceRequest bool, t *models.Ticket, received time.Time) (string, error)
}

// RecordSink persists processing records. Emission is best effort; a sink
// failure is logged, never escalated.
type RecordSink interface {
	Record(ctx context.Context, r models.ProcessingRecord) error
}

// Result is returned for a successfully processed email.
type Result struct {
	Email          *models.ParsedEmail
	Ticket         *models.Ticket
	DestinationKey string
	Deliveries     []models.DeliveryResult
	Elapsed        time.Duration
}

// Pipeline processes single emails end to end. All state lives in the
// invocation; a Pipeline is safe for concurrent use.
type Pipeline struct {
	classifier classify.Classifier
	sender     Sender
	archiver   Archiver
	sink       RecordSink
	recipients []string
	retryCfg   retry.Config
}

// Config holds dependencies for the pipeline.
type Config struct {
	Classifier classify.Classifier
	Sender     Sender
	Archiver   Archiver
	Sink       RecordSink // optional
	Recipients []string
	Retry      retry.Config
}

// New creates an email pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		classifier: cfg.Classifier,
		sender:     cfg.Sender,
		archiver:   cfg.Archiver,
		sink:       cfg.Sink,
		recipients: cfg.Recipients,
		retryCfg:   cfg.Retry,
	}
}

// Process runs one email through the pipeline. On failure it emits the
// error-path processing record and propagates the triggering error.
func (p *Pipeline) Process(ctx context.Context, content []byte, sourceKey string) (*Result, error) {
	start := time.Now()
	status := models.StatusStarted

	fail := func(err error, ticketType string, deliveries []models.DeliveryResult) error {
		p.emit(ctx, models.ProcessingRecord{
			SourceKey:       sourceKey,
			Status:          status,
			TicketType:      ticketType,
			Error:           err.Error(),
			DeliveryResults: deliveries,
			DurationMillis:  time.Since(start).Milliseconds(),
		})
		metrics.EmailsProcessedTotal.WithLabelValues("error").Inc()
		return err
	}

	// started: required inputs
	if len(content) == 0 || sourceKey == "" {
		return nil, fail(ErrInvalidInput, "", nil)
	}

	// parsed: structured fields from raw content
	email, err := parseEmail(content, sourceKey)
	if err != nil {
		return nil, fail(err, "", nil)
	}
	status = models.StatusParsed

	// analyzed: classify under retry, then the schema gate
	classifyStart := time.Now()
	raw, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) ([]byte, error) {
		return p.classifier.Classify(ctx, email.TextBody)
	})
	metrics.ClassifyDuration.Observe(time.Since(classifyStart).Seconds())
	if err != nil {
		return nil, fail(fmt.Errorf("classify email: %w", err), "", nil)
	}

	tkt, err := ticket.Validate(raw)
	if err != nil {
		return nil, fail(err, "", nil)
	}
	status = models.StatusAnalyzed
	metrics.TicketsTotal.WithLabelValues(string(tkt.Type)).Inc()

	// notify: independent fan-out, one result per recipient
	deliveries := p.notify(ctx, tkt)

	// completed: archive strictly after all sends have resolved
	destKey, err := p.archiver.Move(ctx, sourceKey, tkt.IsServiceRequest(), tkt, email.Date)
	if err != nil {
		return nil, fail(err, string(tkt.Type), deliveries)
	}
	status = models.StatusCompleted

	elapsed := time.Since(start)
	p.emit(ctx, models.ProcessingRecord{
		SourceKey:       sourceKey,
		DestinationKey:  destKey,
		Status:          status,
		TicketType:      string(tkt.Type),
		DeliveryResults: deliveries,
		DurationMillis:  elapsed.Milliseconds(),
	})
	metrics.EmailsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.ProcessingDuration.Observe(elapsed.Seconds())

	return &Result{
		Email:          email,
		Ticket:         tkt,
		DestinationKey: destKey,
		Deliveries:     deliveries,
		Elapsed:        elapsed,
	}, nil
}

// notify formats the ticket and sends it to every configured recipient
// concurrently. Each send is wrapped in its own retry; one recipient's
// failure never blocks or retries the others. Returns nil when the ticket
// is not a service request.
func (p *Pipeline) notify(ctx context.Context, tkt *models.Ticket) []models.DeliveryResult {
	message := ticket.Format(tkt)
	if message == "" {
		return nil
	}

	results := make([]models.DeliveryResult, len(p.recipients))

	var wg sync.WaitGroup
	for i, recipient := range p.recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			results[i] = p.sendOne(ctx, message, recipient)
		}(i, recipient)
	}
	wg.Wait()

	for _, r := range results {
		label := "success"
		if !r.Success {
			label = "failure"
		}
		metrics.NotificationsTotal.WithLabelValues(label).Inc()
	}

	return results
}

// sendOne delivers the message to a single recipient. An invalid number
// fails immediately; transport errors are retried up to the bound.
func (p *Pipeline) sendOne(ctx context.Context, message, recipient string) models.DeliveryResult {
	if _, err := phone.Normalize(recipient); err != nil {
		slog.Warn("skipping recipient with invalid number",
			"destination", recipient,
			"error", err,
		)
		return models.DeliveryResult{Destination: recipient, Success: false, Error: err.Error()}
	}

	_, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.sender.Send(ctx, message, recipient)
	})
	if err != nil {
		slog.Error("notification delivery failed",
			"destination", recipient,
			"error", err,
		)
		return models.DeliveryResult{Destination: recipient, Success: false, Error: err.Error()}
	}

	return models.DeliveryResult{Destination: recipient, Success: true}
}

// emit writes the processing record to the sink (best effort) and logs it.
func (p *Pipeline) emit(ctx context.Context, rec models.ProcessingRecord) {
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	if p.sink != nil {
		if err := p.sink.Record(ctx, rec); err != nil {
			slog.Error("failed to persist processing record",
				"source_key", rec.SourceKey,
				"error", err,
			)
		}
	}

	slog.Info("email processed",
		"source_key", rec.SourceKey,
		"destination_key", rec.DestinationKey,
		"status", rec.Status,
		"ticket_type", rec.TicketType,
		"deliveries", len(rec.DeliveryResults),
		"duration_ms", rec.DurationMillis,
		"error", rec.Error,
	)
}
