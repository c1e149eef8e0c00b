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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bcem/dispatch/internal/models"
	"github.com/bcem/dispatch/internal/retry"
	"github.com/bcem/dispatch/internal/ticket"
)

const rawEmail = "From: Dana Whitmore <dana@example.com>\r\n" +
	"To: dispatch@acme.example\r\n" +
	"Subject: No heat at 123 Main St\r\n" +
	"Date: Tue, 01 Sep 2026 14:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"No heat, pipe frozen at 123 Main St, SLC, emergency\r\n"

const serviceRequestJSON = `{
	"type": "service_request",
	"customer_name": "Dana Whitmore",
	"description": "No heat, pipe frozen at 123 Main St",
	"location": {"street_address": "123 Main St", "city": "Salt Lake City", "state": "UT", "zip": null},
	"urgency": "emergency",
	"system_type": "heating"
}`

// --- Fakes ---

type fakeClassifier struct {
	mu       sync.Mutex
	response string
	failures int // fail this many calls before succeeding
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("classifier unavailable (call %d)", f.calls)
	}
	return []byte(f.response), nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     map[string]int // destination -> send attempts
	failDest string         // destination that always fails
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string]int)}
}

func (f *fakeSender) Send(_ context.Context, message, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[destination]++
	if destination == f.failDest {
		return errors.New("transport rejected the message")
	}
	return nil
}

func (f *fakeSender) attempts(destination string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[destination]
}

type fakeArchiver struct {
	mu      sync.Mutex
	moved   []string
	dest    string
	failErr error
}

func (f *fakeArchiver) Move(_ context.Context, srcKey string, serviceRequest bool, t *models.Ticket, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return "", f.failErr
	}
	f.moved = append(f.moved, srcKey)
	category := "non_service_requests"
	if serviceRequest {
		category = "service_requests"
	}
	if f.dest != "" {
		return f.dest, nil
	}
	return "processed/acme/" + category + "/2026-09/slug", nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []models.ProcessingRecord
}

func (f *fakeSink) Record(_ context.Context, r models.ProcessingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeSink) last(t *testing.T) models.ProcessingRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatal("no processing record emitted")
	}
	return f.records[len(f.records)-1]
}

var recipients = []string{"+15550000001 2345", "+15550000002 2345", "+15550000003 2345"}

func newTestPipeline(classifier *fakeClassifier, sender *fakeSender, archiver *fakeArchiver, sink *fakeSink) *Pipeline {
	return New(Config{
		Classifier: classifier,
		Sender:     sender,
		Archiver:   archiver,
		Sink:       sink,
		Recipients: recipients,
		Retry:      retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
}

// --- Tests ---

func TestProcess_ServiceRequestEndToEnd(t *testing.T) {
	classifier := &fakeClassifier{response: serviceRequestJSON}
	sender := newFakeSender()
	archiver := &fakeArchiver{}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, sender, archiver, sink)

	result, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Email.Subject != "No heat at 123 Main St" {
		t.Errorf("subject = %q", result.Email.Subject)
	}
	if result.Ticket.Type != models.TicketServiceRequest {
		t.Errorf("ticket type = %q", result.Ticket.Type)
	}
	if !strings.Contains(result.DestinationKey, "service_requests") {
		t.Errorf("destination = %q, want service_requests category", result.DestinationKey)
	}

	// Every recipient got exactly one attempt.
	for _, r := range recipients {
		if sender.attempts(r) != 1 {
			t.Errorf("recipient %s: %d attempts, want 1", r, sender.attempts(r))
		}
	}
	if len(result.Deliveries) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(result.Deliveries))
	}
	for _, d := range result.Deliveries {
		if !d.Success {
			t.Errorf("delivery to %s failed: %s", d.Destination, d.Error)
		}
	}

	rec := sink.last(t)
	if rec.Status != models.StatusCompleted {
		t.Errorf("record status = %q, want completed", rec.Status)
	}
	if rec.DestinationKey == "" {
		t.Error("completed record must carry the destination key")
	}
	if rec.TicketType != string(models.TicketServiceRequest) {
		t.Errorf("record ticket type = %q", rec.TicketType)
	}
}

func TestProcess_NotServiceRequestSkipsNotification(t *testing.T) {
	classifier := &fakeClassifier{response: `{"type": "not_service_request"}`}
	sender := newFakeSender()
	archiver := &fakeArchiver{}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, sender, archiver, sink)

	result, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/news.eml")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, r := range recipients {
		if sender.attempts(r) != 0 {
			t.Errorf("no notification should be dispatched, but %s got %d", r, sender.attempts(r))
		}
	}
	if !strings.Contains(result.DestinationKey, "non_service_requests") {
		t.Errorf("destination = %q, want non_service_requests category", result.DestinationKey)
	}
	if len(result.Deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0", len(result.Deliveries))
	}
}

func TestProcess_PartialDeliveryFailureStillArchives(t *testing.T) {
	classifier := &fakeClassifier{response: serviceRequestJSON}
	sender := newFakeSender()
	sender.failDest = recipients[1]
	archiver := &fakeArchiver{}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, sender, archiver, sink)

	result, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")
	if err != nil {
		t.Fatalf("partial delivery failure must not surface: %v", err)
	}

	// The failing recipient was retried to the bound; the others were not.
	if got := sender.attempts(recipients[1]); got != 3 {
		t.Errorf("failing recipient attempts = %d, want 3", got)
	}
	if got := sender.attempts(recipients[0]); got != 1 {
		t.Errorf("healthy recipient attempts = %d, want 1", got)
	}

	var ok, failed int
	for _, d := range result.Deliveries {
		if d.Success {
			ok++
		} else {
			failed++
			if d.Destination != recipients[1] {
				t.Errorf("wrong recipient recorded as failed: %s", d.Destination)
			}
			if d.Error == "" {
				t.Error("failed delivery must carry its error")
			}
		}
	}
	if ok != 2 || failed != 1 {
		t.Errorf("deliveries = %d ok / %d failed, want 2/1", ok, failed)
	}

	if len(archiver.moved) != 1 {
		t.Error("email must still be archived after a partial delivery failure")
	}
}

func TestProcess_InvalidRecipientContained(t *testing.T) {
	classifier := &fakeClassifier{response: serviceRequestJSON}
	sender := newFakeSender()
	archiver := &fakeArchiver{}
	sink := &fakeSink{}

	pipe := New(Config{
		Classifier: classifier,
		Sender:     sender,
		Archiver:   archiver,
		Sink:       sink,
		Recipients: []string{"bogus", recipients[0]},
		Retry:      retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})

	result, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")
	if err != nil {
		t.Fatalf("invalid recipient must not surface: %v", err)
	}

	// The invalid number is never handed to the transport, not even once.
	if got := sender.attempts("bogus"); got != 0 {
		t.Errorf("invalid recipient reached the transport %d times", got)
	}
	if result.Deliveries[0].Success || result.Deliveries[0].Error == "" {
		t.Error("invalid recipient must be recorded as a failed delivery")
	}
	if !result.Deliveries[1].Success {
		t.Error("valid recipient must still be delivered")
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	sink := &fakeSink{}
	pipe := newTestPipeline(&fakeClassifier{}, newFakeSender(), &fakeArchiver{}, sink)

	if _, err := pipe.Process(context.Background(), nil, "incoming/acme/x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty content, got %v", err)
	}
	if _, err := pipe.Process(context.Background(), []byte(rawEmail), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty key, got %v", err)
	}

	rec := sink.last(t)
	if rec.Status != models.StatusStarted {
		t.Errorf("record status = %q, want started", rec.Status)
	}
	if rec.Error == "" {
		t.Error("error record must carry the error message")
	}
}

func TestProcess_ClassifierRetriedThenFatal(t *testing.T) {
	classifier := &fakeClassifier{failures: 10, response: serviceRequestJSON}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, newFakeSender(), &fakeArchiver{}, sink)

	_, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")
	if err == nil {
		t.Fatal("expected classifier failure to surface")
	}

	if classifier.calls != 3 {
		t.Errorf("classifier called %d times, want 3", classifier.calls)
	}

	rec := sink.last(t)
	if rec.Status != models.StatusParsed {
		t.Errorf("record status = %q, want parsed (last reached)", rec.Status)
	}
}

func TestProcess_ClassifierRecoversWithinRetries(t *testing.T) {
	classifier := &fakeClassifier{failures: 2, response: serviceRequestJSON}
	pipe := newTestPipeline(classifier, newFakeSender(), &fakeArchiver{}, &fakeSink{})

	if _, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml"); err != nil {
		t.Fatalf("classifier recovered on attempt 3, Process should succeed: %v", err)
	}
	if classifier.calls != 3 {
		t.Errorf("classifier called %d times, want 3", classifier.calls)
	}
}

func TestProcess_SchemaFailureNotRetried(t *testing.T) {
	classifier := &fakeClassifier{response: `{"type": "maybe"}`}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, newFakeSender(), &fakeArchiver{}, sink)

	_, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")

	var verr *ticket.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// Validation failures are not fed back into the retry loop.
	if classifier.calls != 1 {
		t.Errorf("classifier called %d times, want 1", classifier.calls)
	}
}

func TestProcess_ArchiveFailureSurfacesWithDeliveries(t *testing.T) {
	classifier := &fakeClassifier{response: serviceRequestJSON}
	sender := newFakeSender()
	archiver := &fakeArchiver{failErr: errors.New("store unavailable")}
	sink := &fakeSink{}
	pipe := newTestPipeline(classifier, sender, archiver, sink)

	_, err := pipe.Process(context.Background(), []byte(rawEmail), "incoming/acme/abc123.eml")
	if err == nil {
		t.Fatal("expected archival failure to surface")
	}

	rec := sink.last(t)
	if rec.Status != models.StatusAnalyzed {
		t.Errorf("record status = %q, want analyzed (last reached)", rec.Status)
	}
	if len(rec.DeliveryResults) != 3 {
		t.Errorf("error record should keep the delivery results, got %d", len(rec.DeliveryResults))
	}
	if rec.DestinationKey != "" {
		t.Error("failure record must omit the destination key")
	}
}
