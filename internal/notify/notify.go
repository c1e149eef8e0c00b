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

// Package notify sends SMS notifications through the external transport.
// It carries no retry logic; retry policy belongs to the caller, this is
// only the mechanism.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bcem/dispatch/internal/phone"
)

// ErrInvalidMessage is returned when the message body is empty.
var ErrInvalidMessage = errors.New("notification message is empty")

// TransportError reports a non-success response from the SMS API.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("SMS transport returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Sender issues one outbound SMS request per destination.
type Sender struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	from       string
}

// SenderConfig holds the SMS transport settings.
type SenderConfig struct {
	HTTPClient *http.Client
	APIURL     string
	APIKey     string
	From       string
}

// NewSender creates an SMS sender.
func NewSender(cfg SenderConfig) *Sender {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Sender{
		httpClient: httpClient,
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
	}
}

// smsRequest is the transport's wire format.
type smsRequest struct {
	Content        string   `json:"content"`
	From           string   `json:"from"`
	To             []string `json:"to"`
	SetInboxStatus bool     `json:"setInboxStatus"`
}

// Send validates the origin and destination numbers and issues a single
// outbound request. A non-success response becomes a *TransportError.
func (s *Sender) Send(ctx context.Context, message, to string) error {
	if message == "" {
		return ErrInvalidMessage
	}

	from, err := phone.Normalize(s.from)
	if err != nil {
		return fmt.Errorf("origin number: %w", err)
	}
	dest, err := phone.Normalize(to)
	if err != nil {
		return fmt.Errorf("destination number: %w", err)
	}

	body, err := json.Marshal(smsRequest{
		Content:        message,
		From:           from,
		To:             []string{dest},
		SetInboxStatus: true,
	})
	if err != nil {
		return fmt.Errorf("marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &TransportError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
