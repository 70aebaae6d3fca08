// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package telemetry exposes the relay's Prometheus metrics: ticket
// lifecycle counters and streaming byte throughput. Registration happens
// once via NewMetrics; handlers read nothing back from Prometheus, they
// only push.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the gauges/counters the registry and HTTP front report
// to. It satisfies registry.Metrics.
type Metrics struct {
	ticketsMinted      prometheus.Counter
	ticketsActive      prometheus.Gauge
	ticketsCulledTot   prometheus.Counter
	bytesUploadedTot   prometheus.Counter
	bytesDownloadedTot prometheus.Counter
}

// NewMetrics constructs and registers the relay's metrics against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or nil to use
// the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticketsMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_tickets_minted_total",
			Help: "Total tickets minted, forward or reverse.",
		}),
		ticketsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bytebeam_tickets_active",
			Help: "Tickets currently present in the registry.",
		}),
		ticketsCulledTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_tickets_culled_total",
			Help: "Tickets removed by the Culler for sitting idle past their tier's cull timeout.",
		}),
		bytesUploadedTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_bytes_uploaded_total",
			Help: "Total bytes accepted from senders across all tickets.",
		}),
		bytesDownloadedTot: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytebeam_bytes_downloaded_total",
			Help: "Total bytes streamed to receivers across all tickets.",
		}),
	}
	reg.MustRegister(
		m.ticketsMinted,
		m.ticketsActive,
		m.ticketsCulledTot,
		m.bytesUploadedTot,
		m.bytesDownloadedTot,
	)
	return m
}

// TicketMinted records a new ticket and bumps the active gauge.
func (m *Metrics) TicketMinted() {
	m.ticketsMinted.Inc()
	m.ticketsActive.Inc()
}

// TicketDeleted decrements the active gauge (called for both explicit
// deletes and cull-driven deletes; TicketCulled additionally tracks the
// cull-specific counter).
func (m *Metrics) TicketDeleted() {
	m.ticketsActive.Dec()
}

// TicketCulled records a Culler-driven removal.
func (m *Metrics) TicketCulled() {
	m.ticketsCulledTot.Inc()
}

// BytesUploaded adds n to the uploaded byte counter.
func (m *Metrics) BytesUploaded(n int64) {
	m.bytesUploadedTot.Add(float64(n))
}

// BytesDownloaded adds n to the downloaded byte counter.
func (m *Metrics) BytesDownloaded(n int64) {
	m.bytesDownloadedTot.Add(float64(n))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
