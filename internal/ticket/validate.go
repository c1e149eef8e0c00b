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

// Package ticket validates raw classifier output into a canonical Ticket
// and renders validated tickets into notification messages. Validate is
// the single gate between untrusted model output and the rest of the
// pipeline; no downstream component may touch unvalidated data.
package ticket

import (
	"encoding/json"
	"fmt"

	"github.com/bcem/dispatch/internal/models"
)

// ValidationError reports a schema violation at a specific field path.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ticket validation failed at %s: %s", e.Field, e.Reason)
}

var ticketTypes = map[string]models.TicketType{
	string(models.TicketServiceRequest):    models.TicketServiceRequest,
	string(models.TicketNotServiceRequest): models.TicketNotServiceRequest,
}

var urgencies = map[string]models.Urgency{
	string(models.UrgencyLow):       models.UrgencyLow,
	string(models.UrgencyMedium):    models.UrgencyMedium,
	string(models.UrgencyHigh):      models.UrgencyHigh,
	string(models.UrgencyEmergency): models.UrgencyEmergency,
}

var systemTypes = map[string]models.SystemType{
	string(models.SystemHeating):  models.SystemHeating,
	string(models.SystemCooling):  models.SystemCooling,
	string(models.SystemPlumbing): models.SystemPlumbing,
	string(models.SystemOther):    models.SystemOther,
}

// Validate decodes a raw classifier response and checks it against the
// Ticket shape. Optional fields that are absent or null come back as nil
// pointers; enum values outside their allowed sets fail with the
// offending field path.
func Validate(raw []byte) (*models.Ticket, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ValidationError{Field: "$", Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}

	t := &models.Ticket{}

	typeStr, err := requiredString(obj, "type")
	if err != nil {
		return nil, err
	}
	tt, ok := ticketTypes[typeStr]
	if !ok {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown value %q", typeStr)}
	}
	t.Type = tt

	for field, dst := range map[string]**string{
		"customer_name":  &t.CustomerName,
		"description":    &t.Description,
		"source":         &t.Source,
		"ticket_link":    &t.TicketLink,
		"requested_date": &t.RequestedDate,
		"contact_phone":  &t.ContactPhone,
		"notes":          &t.Notes,
	} {
		v, err := optionalString(obj, field)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	if u, err := optionalString(obj, "urgency"); err != nil {
		return nil, err
	} else if u != nil {
		urgency, ok := urgencies[*u]
		if !ok {
			return nil, &ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown value %q", *u)}
		}
		t.Urgency = &urgency
	}

	if s, err := optionalString(obj, "system_type"); err != nil {
		return nil, err
	} else if s != nil {
		system, ok := systemTypes[*s]
		if !ok {
			return nil, &ValidationError{Field: "system_type", Reason: fmt.Sprintf("unknown value %q", *s)}
		}
		t.SystemType = &system
	}

	loc, err := validateLocation(obj)
	if err != nil {
		return nil, err
	}
	t.Location = loc

	return t, nil
}

func validateLocation(obj map[string]json.RawMessage) (*models.Location, error) {
	raw, ok := obj["location"]
	if !ok || isNull(raw) {
		return nil, nil
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, &ValidationError{Field: "location", Reason: "not an object"}
	}

	loc := &models.Location{}
	for field, dst := range map[string]**string{
		"street_address": &loc.StreetAddress,
		"city":           &loc.City,
		"state":          &loc.State,
		"zip":            &loc.Zip,
	} {
		v, err := optionalString(nested, field)
		if err != nil {
			return nil, &ValidationError{Field: "location." + field, Reason: "not a string"}
		}
		*dst = v
	}

	return loc, nil
}

func requiredString(obj map[string]json.RawMessage, field string) (string, error) {
	raw, ok := obj[field]
	if !ok || isNull(raw) {
		return "", &ValidationError{Field: field, Reason: "missing required field"}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ValidationError{Field: field, Reason: "not a string"}
	}
	return s, nil
}

func optionalString(obj map[string]json.RawMessage, field string) (*string, error) {
	raw, ok := obj[field]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ValidationError{Field: field, Reason: "not a string"}
	}
	return &s, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
