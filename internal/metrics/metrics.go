// Package metrics exposes the session subsystem's Prometheus
// instrumentation, the shape linkerd2 and aistore use for their
// transport layers: a handful of package-level collectors registered
// once and referenced by every session.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SessionsOpened counts sessions since process start.
	SessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "opened_total",
		Help:      "Number of sessions accepted.",
	})

	// SessionsClosed counts sessions torn down, labeled by reason.
	SessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "closed_total",
		Help:      "Number of sessions torn down, by reason.",
	}, []string{"reason"})

	// PendingBytes is a gauge of queued+inflight send bytes, summed
	// across all live sessions.
	PendingBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "pending_send_bytes",
		Help:      "Total bytes queued or inflight across sessions.",
	})

	// SentBytesTotal counts bytes written to client sockets.
	SentBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "sent_bytes_total",
		Help:      "Bytes written to client sockets.",
	})

	// BackpressureTeardowns counts sessions torn down for exceeding
	// the hard send cap.
	BackpressureTeardowns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "backpressure_teardowns_total",
		Help:      "Sessions torn down for exceeding the send hard cap.",
	})

	// SnapshotPumpIterations counts per-tick snapshot pump steps, a
	// proxy for how much work the bounded-burst loop is doing.
	SnapshotPumpIterations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tio",
		Subsystem: "session",
		Name:      "snapshot_pump_iterations_total",
		Help:      "Snapshot pump steps executed across all sessions.",
	})
)

// Register adds all session collectors to reg. Call once at process
// startup with prometheus.DefaultRegisterer (or a test registry).
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		SessionsOpened,
		SessionsClosed,
		PendingBytes,
		SentBytesTotal,
		BackpressureTeardowns,
		SnapshotPumpIterations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
