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

// Package server exposes the HTTP entry points: a batch run over all
// pending emails, a single-email diagnostic run, health, and metrics.
//
// The batch endpoint always answers 200 with a per-key success/failure
// breakdown; only a failure of the listing call itself produces a 500.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcem/dispatch/internal/batch"
	"github.com/bcem/dispatch/internal/models"
)

// Pinger checks one backing dependency for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the dispatch HTTP endpoints.
type Handler struct {
	runner  *batch.Runner
	pingers map[string]Pinger
}

// NewHandler creates the HTTP handler. The pingers map names each backing
// dependency checked by /health.
func NewHandler(runner *batch.Runner, pingers map[string]Pinger) *Handler {
	return &Handler{runner: runner, pingers: pingers}
}

// batchResponse is the batch entry point's response body.
type batchResponse struct {
	Message    string       `json:"message"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    batchResults `json:"results"`
}

type batchResults struct {
	Successful []string         `json:"successful"`
	Failed     []batch.KeyError `json:"failed"`
}

// emailResponse is the per-email result shape shared by both entry points.
type emailResponse struct {
	Key             string                  `json:"key"`
	Status          string                  `json:"status"`
	TicketType      string                  `json:"ticket_type,omitempty"`
	DestinationKey  string                  `json:"destination_key,omitempty"`
	DeliveryResults []models.DeliveryResult `json:"delivery_results,omitempty"`
	DurationMillis  int64                   `json:"duration_ms"`
	Error           string                  `json:"error,omitempty"`
}

// ServeBatch handles the batch entry point. Per-email failures are part
// of the 200 response; only a listing failure becomes a 500.
func (h *Handler) ServeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result, err := h.runner.Run(r.Context())
	if err != nil {
		slog.Error("batch listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	successful := result.Successful
	if successful == nil {
		successful = []string{}
	}
	failed := result.Failed
	if failed == nil {
		failed = []batch.KeyError{}
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Message:    fmt.Sprintf("processed %d emails", len(successful)+len(failed)),
		Successful: len(successful),
		Failed:     len(failed),
		Results: batchResults{
			Successful: successful,
			Failed:     failed,
		},
	})
}

// ServeSingle handles the single-email diagnostic entry point. The body
// is {"key": "incoming/<tenant>/<id>"}; the response uses the same
// per-email shape as batch results, with processing failures reported as
// a keyed error rather than a non-200 status.
func (h *Handler) ServeSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be {\"key\": \"...\"}"})
		return
	}

	result, err := h.runner.RunOne(r.Context(), req.Key)
	if err != nil {
		writeJSON(w, http.StatusOK, emailResponse{
			Key:    req.Key,
			Status: "error",
			Error:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, emailResponse{
		Key:             req.Key,
		Status:          models.StatusCompleted,
		TicketType:      string(result.Ticket.Type),
		DestinationKey:  result.DestinationKey,
		DeliveryResults: result.Deliveries,
		DurationMillis:  result.Elapsed.Milliseconds(),
	})
}

// ServeHealth checks every backing dependency.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	for name, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			http.Error(w, name+" unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Mux builds the route table.
func Mux(handler *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/process", handler.ServeBatch)
	mux.HandleFunc("/process/key", handler.ServeSingle)
	mux.HandleFunc("/health", handler.ServeHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve starts the HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler: Mux(handler),
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
