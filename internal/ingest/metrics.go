package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the consumer does with each message.
type Metrics struct {
	Received       prometheus.Counter
	Stored         prometheus.Counter
	DecodeFailures prometheus.Counter
	StoreFailures  prometheus.Counter
	Duplicates     prometheus.Counter
	Reconnects     prometheus.Counter
	Connected      prometheus.Gauge
}

// NewMetrics creates the ingestion collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Messages received from the broker.",
		}),
		Stored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "readings_stored_total",
			Help:      "Readings persisted to the time series store.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "decode_failures_total",
			Help:      "Messages dropped because they could not be decoded.",
		}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "store_failures_total",
			Help:      "Readings that could not be persisted.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "duplicates_total",
			Help:      "Redelivered readings skipped.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "reconnects_total",
			Help:      "Subscription attempts after a lost or failed connection.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pumpstream",
			Subsystem: "ingest",
			Name:      "connected",
			Help:      "1 while a broker subscription is active.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.Received, m.Stored, m.DecodeFailures, m.StoreFailures,
			m.Duplicates, m.Reconnects, m.Connected,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
