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

package ticket

import (
	"strings"
	"testing"

	"github.com/bcem/dispatch/internal/models"
)

func strPtr(s string) *string { return &s }

func sampleTicket() *models.Ticket {
	urgency := models.UrgencyEmergency
	system := models.SystemHeating
	return &models.Ticket{
		Type:          models.TicketServiceRequest,
		CustomerName:  strPtr("Dana Whitmore"),
		Description:   strPtr("No heat, pipe frozen."),
		Source:        strPtr("email"),
		TicketLink:    strPtr("https://tickets.example.com/T-1041"),
		RequestedDate: strPtr("2026-09-02"),
		ContactPhone:  strPtr("+15551234567"),
		Notes:         strPtr("Tenant works nights"),
		Location: &models.Location{
			StreetAddress: strPtr("123 Main St"),
			City:          strPtr("Salt Lake City"),
			State:         strPtr("UT"),
		},
		Urgency:    &urgency,
		SystemType: &system,
	}
}

func TestFormat_NotServiceRequestReturnsEmpty(t *testing.T) {
	tkt := &models.Ticket{Type: models.TicketNotServiceRequest}
	if got := Format(tkt); got != "" {
		t.Errorf("Format for not_service_request = %q, want empty", got)
	}
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}

func TestFormat_FullMessage(t *testing.T) {
	got := Format(sampleTicket())

	wantLines := []string{
		"[EMERGENCY] New Service Request",
		"Source: email",
		"Customer: Dana Whitmore",
		"Location: 123 Main St, Salt Lake City, UT",
		"System: heating",
		"",
		"No heat, pipe frozen.",
		"",
		"Requested: 2026-09-02",
		"Contact: +15551234567",
		"Notes: Tenant works nights",
		"",
		"https://tickets.example.com/T-1041",
	}
	want := strings.Join(wantLines, "\n")

	if got != want {
		t.Errorf("Format mismatch:\ngot:\n%s\n\nwant:\n%s", got, want)
	}
}

func TestFormat_Deterministic(t *testing.T) {
	tkt := sampleTicket()
	if Format(tkt) != Format(tkt) {
		t.Error("re-formatting the same ticket must yield identical output")
	}
}

func TestFormat_SkipsNilSections(t *testing.T) {
	tkt := &models.Ticket{Type: models.TicketServiceRequest}
	got := Format(tkt)

	if got != "New Service Request" {
		t.Errorf("minimal ticket message = %q, want header only", got)
	}
}

func TestFormat_LocationSkipsEmptyFragments(t *testing.T) {
	tkt := &models.Ticket{
		Type: models.TicketServiceRequest,
		Location: &models.Location{
			StreetAddress: strPtr(""),
			City:          strPtr("Ogden"),
			State:         strPtr("UT"),
		},
	}
	got := Format(tkt)

	if !strings.Contains(got, "Location: Ogden, UT") {
		t.Errorf("empty fragments should be skipped, got %q", got)
	}
}

func TestFormat_AllEmptyLocationOmitsLine(t *testing.T) {
	tkt := &models.Ticket{
		Type:     models.TicketServiceRequest,
		Location: &models.Location{StreetAddress: strPtr("  ")},
	}
	got := Format(tkt)

	if strings.Contains(got, "Location:") {
		t.Errorf("blank location should omit the line entirely, got %q", got)
	}
}

func TestFormat_HeaderWithoutUrgency(t *testing.T) {
	tkt := &models.Ticket{
		Type:         models.TicketServiceRequest,
		CustomerName: strPtr("Dana"),
	}
	got := Format(tkt)

	if !strings.HasPrefix(got, "New Service Request") {
		t.Errorf("header should be untagged without urgency, got %q", got)
	}
}
