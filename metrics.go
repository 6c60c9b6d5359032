package connectx

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded by the requests counter.
const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeDropped   = "dropped"
)

type metrics struct {
	requests   *prometheus.CounterVec
	queueDepth prometheus.GaugeFunc
}

func newMetrics(queueLen func() int) *metrics {
	return &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectx",
			Subsystem: "sdk",
			Name:      "requests_total",
			Help:      "ConnectX SDK calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "connectx",
			Subsystem: "sdk",
			Name:      "dispatch_queue_depth",
			Help:      "Fire-and-forget calls waiting for delivery.",
		}, func() float64 { return float64(queueLen()) }),
	}
}

// register adds the collectors to reg. Collectors that are already
// registered (a second client sharing a registry) are reused.
func (m *metrics) register(reg prometheus.Registerer) error {
	if err := reg.Register(m.requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return err
		}
		m.requests = existing
	}
	if err := reg.Register(m.queueDepth); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}
	return nil
}

func (m *metrics) observe(op, outcome string) {
	m.requests.WithLabelValues(op, outcome).Inc()
}
