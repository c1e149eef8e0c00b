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

	"github.com/bcem/dispatch/internal/models"
)

// Format renders a validated ticket into the plain-text notification
// message. Returns the empty string when the ticket is not a service
// request; no message is ever sent for those. Deterministic and free of
// side effects, so message content is testable without any I/O.
func Format(t *models.Ticket) string {
	if !t.IsServiceRequest() {
		return ""
	}

	var lines []string

	header := "New Service Request"
	if t.Urgency != nil {
		header = "[" + strings.ToUpper(string(*t.Urgency)) + "] " + header
	}
	lines = append(lines, header)

	if t.Source != nil {
		lines = append(lines, "Source: "+*t.Source)
	}
	if t.CustomerName != nil {
		lines = append(lines, "Customer: "+*t.CustomerName)
	}
	if loc := joinLocation(t.Location); loc != "" {
		lines = append(lines, "Location: "+loc)
	}
	if t.SystemType != nil {
		lines = append(lines, "System: "+string(*t.SystemType))
	}
	if t.Description != nil {
		lines = append(lines, "", *t.Description, "")
	}
	if t.RequestedDate != nil {
		lines = append(lines, "Requested: "+*t.RequestedDate)
	}
	if t.ContactPhone != nil {
		lines = append(lines, "Contact: "+*t.ContactPhone)
	}
	if t.Notes != nil {
		lines = append(lines, "Notes: "+*t.Notes)
	}
	if t.TicketLink != nil {
		lines = append(lines, "", *t.TicketLink)
	}

	return strings.Join(lines, "\n")
}

// joinLocation joins the non-empty address fragments with commas.
func joinLocation(loc *models.Location) string {
	if loc == nil {
		return ""
	}

	var parts []string
	for _, p := range []*string{loc.StreetAddress, loc.City, loc.State, loc.Zip} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, ", ")
}
