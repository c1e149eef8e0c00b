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
	"bytes"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/bcem/dispatch/internal/models"
)

// parseEmail converts raw MIME content into the canonical ParsedEmail.
// enmime down-converts HTML-only messages, so TextBody is populated for
// those too. Malformed input is fatal for the email; there is no retry.
func parseEmail(content []byte, sourceKey string) (*models.ParsedEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	parsed := &models.ParsedEmail{
		SourceKey:   sourceKey,
		Subject:     env.GetHeader("Subject"),
		From:        parseAddress(env.GetHeader("From")),
		TextBody:    env.Text,
		HTMLBody:    env.HTML,
		Attachments: []models.Attachment{},
	}

	if list, err := mail.ParseAddressList(env.GetHeader("To")); err == nil {
		for _, a := range list {
			parsed.To = append(parsed.To, models.EmailAddress{Address: a.Address, Name: a.Name})
		}
	}

	if d, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		parsed.Date = d.UTC()
	} else {
		parsed.Date = time.Now().UTC()
	}

	for _, part := range env.Attachments {
		parsed.Attachments = append(parsed.Attachments, models.Attachment{
			Name:        part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}

	return parsed, nil
}

// parseAddress parses a single address header, falling back to the raw
// header value when it is not RFC 5322 clean.
func parseAddress(header string) models.EmailAddress {
	if a, err := mail.ParseAddress(header); err == nil {
		return models.EmailAddress{Address: a.Address, Name: a.Name}
	}
	return models.EmailAddress{Address: header}
}
