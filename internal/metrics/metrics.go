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

// Package metrics exposes Prometheus metrics for the dispatch pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EmailsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_emails_processed_total",
			Help: "Emails processed, labelled by terminal status",
		},
		[]string{"status"},
	)

	TicketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_tickets_total",
			Help: "Validated tickets, labelled by classifier verdict",
		},
		[]string{"type"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Notification delivery attempts, labelled by result",
		},
		[]string{"result"},
	)

	ProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_processing_duration_seconds",
			Help:    "Duration of one email's full pipeline run",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClassifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_classify_duration_seconds",
			Help:    "Duration of the classifier call including retries",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all dispatch metrics with the default registry.
func Register() {
	prometheus.MustRegister(EmailsProcessedTotal)
	prometheus.MustRegister(TicketsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(ClassifyDuration)
}
