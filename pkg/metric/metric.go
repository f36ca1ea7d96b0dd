// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all metrics for the auction engine using luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Lifecycle metrics
	AuctionsStarted   metrics.Counter
	AuctionsFinalized metrics.Counter
	AuctionsClosed    metrics.Counter

	// Bid metrics
	BidsAccepted metrics.Counter
	BidsClipped  metrics.Counter
	BidsRejected metrics.Counter
	ClaimsPaid   metrics.Counter

	// API metrics
	RequestsProcessed metrics.CounterVec

	// Performance metrics
	BidLatency metrics.Histogram
}

// NewMetrics creates a new metrics instance using luxfi/metric
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New("dutch")

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.AuctionsStarted = metricsInstance.NewCounter("auctions_started_total", "Total number of auctions started")
	m.AuctionsFinalized = metricsInstance.NewCounter("auctions_finalized_total", "Total number of auctions finalized")
	m.AuctionsClosed = metricsInstance.NewCounter("auctions_closed_total", "Total number of auctions closed")

	m.BidsAccepted = metricsInstance.NewCounter("bids_accepted_total", "Total number of bids accepted")
	m.BidsClipped = metricsInstance.NewCounter("bids_clipped_total", "Total number of bids clipped to the remaining room")
	m.BidsRejected = metricsInstance.NewCounter("bids_rejected_total", "Total number of bids rejected")
	m.ClaimsPaid = metricsInstance.NewCounter("claims_paid_total", "Total number of claims paid out")

	m.RequestsProcessed = metricsInstance.NewCounterVec(
		"api_requests_processed_total",
		"Total number of API requests processed",
		[]string{"method", "status"},
	)

	m.BidLatency = metricsInstance.NewHistogram(
		"bid_latency_seconds",
		"Time to process a bid",
		prometheus.DefBuckets,
	)

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}
