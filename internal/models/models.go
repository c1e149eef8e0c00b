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

// Package models defines the data structures shared across the dispatch service.
package models

import "time"

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment represents a file attached to an email.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// ParsedEmail is the structured form of one raw inbound email. It is derived
// once per pipeline invocation and read-only afterwards.
type ParsedEmail struct {
	SourceKey   string         `json:"source_key"`
	Subject     string         `json:"subject"`
	From        EmailAddress   `json:"from"`
	To          []EmailAddress `json:"to"`
	Date        time.Time      `json:"date"`
	TextBody    string         `json:"text_body"`
	HTMLBody    string         `json:"html_body,omitempty"`
	Attachments []Attachment   `json:"attachments"`
}

// TicketType is the classifier's verdict on an email.
type TicketType string

const (
	TicketServiceRequest    TicketType = "service_request"
	TicketNotServiceRequest TicketType = "not_service_request"
)

// Urgency grades how quickly a service request needs attention.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// SystemType identifies which building system a request concerns.
type SystemType string

const (
	SystemHeating  SystemType = "heating"
	SystemCooling  SystemType = "cooling"
	SystemPlumbing SystemType = "plumbing"
	SystemOther    SystemType = "other"
)

// Location is the optional nested address block on a ticket.
// Absent fields stay nil and serialise as explicit JSON null.
type Location struct {
	StreetAddress *string `json:"street_address"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	Zip           *string `json:"zip"`
}

// Ticket is the canonical, validated output of classification.
//
// Optional fields are pointers without omitempty so that a missing value is
// always an explicit null on the wire. Downstream formatting never has to
// distinguish "missing key" from "null value".
type Ticket struct {
	Type          TicketType  `json:"type"`
	CustomerName  *string     `json:"customer_name"`
	Description   *string     `json:"description"`
	Source        *string     `json:"source"`
	TicketLink    *string     `json:"ticket_link"`
	RequestedDate *string     `json:"requested_date"`
	ContactPhone  *string     `json:"contact_phone"`
	Notes         *string     `json:"notes"`
	Location      *Location   `json:"location"`
	Urgency       *Urgency    `json:"urgency"`
	SystemType    *SystemType `json:"system_type"`
}

// IsServiceRequest reports whether the ticket warrants notification.
func (t *Ticket) IsServiceRequest() bool {
	return t != nil && t.Type == TicketServiceRequest
}

// DeliveryResult records one notification attempt to one recipient.
// Immutable once recorded.
type DeliveryResult struct {
	Destination string `json:"destination"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// Pipeline statuses, in progression order. A failed run keeps the last
// status it successfully reached.
const (
	StatusStarted   = "started"
	StatusParsed    = "parsed"
	StatusAnalyzed  = "analyzed"
	StatusCompleted = "completed"
)

// ProcessingRecord is the write-once audit artifact emitted per email,
// on both success and failure paths.
type ProcessingRecord struct {
	ID              string           `json:"id"`
	SourceKey       string           `json:"source_key"`
	DestinationKey  string           `json:"destination_key,omitempty"`
	Status          string           `json:"status"`
	TicketType      string           `json:"ticket_type,omitempty"`
	Error           string           `json:"error,omitempty"`
	DeliveryResults []DeliveryResult `json:"delivery_results"`
	DurationMillis  int64            `json:"duration_ms"`
	CreatedAt       time.Time        `json:"created_at"`
}
