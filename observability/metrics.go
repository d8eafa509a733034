package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Almanac, backed by any go-utils
// MetricFactory (e.g. metrics.NewMetricsCollector() for standalone usage).
type Metrics struct {
	CyclesTotal            gu.Counter
	EventsProjectedTotal   gu.Counter
	CandidatesMatchedTotal gu.Counter
	ClaimsTotal            gu.Counter
	DeliveriesTotal        gu.Counter
	DeliveryLatency        gu.Histogram
	DLQSize                gu.Gauge
	LedgerSize             gu.Gauge
}

// NewMetrics creates Almanac metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		CyclesTotal:            factory.Counter("almanac_cycles_total"),
		EventsProjectedTotal:   factory.Counter("almanac_events_projected_total"),
		CandidatesMatchedTotal: factory.Counter("almanac_candidates_matched_total"),
		ClaimsTotal:            factory.Counter("almanac_claims_total"),
		DeliveriesTotal:        factory.Counter("almanac_deliveries_total"),
		DeliveryLatency:        factory.Histogram("almanac_delivery_latency_seconds"),
		DLQSize:                factory.Gauge("almanac_dlq_size"),
		LedgerSize:             factory.Gauge("almanac_ledger_size"),
	}
}

// RecordClaim records a claim attempt outcome ("claimed" or "duplicate").
func (m *Metrics) RecordClaim(result string) {
	m.ClaimsTotal.WithLabels(map[string]string{"result": result}).Inc()
}

// RecordDelivery records one channel delivery attempt with its status and
// latency.
func (m *Metrics) RecordDelivery(channel, status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"channel": channel, "status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
