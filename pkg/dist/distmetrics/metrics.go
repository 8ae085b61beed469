// Package distmetrics registers the prometheus collectors the
// distribution core updates as connections come and go.
package distmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ActiveConnections is the number of sessions currently in the
	// Connected stage.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterlink",
		Subsystem: "dist",
		Name:      "active_connections",
		Help:      "Number of peer connections currently in the Connected stage.",
	})

	// HandshakesTotal counts handshake attempts by outcome.
	HandshakesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterlink",
		Subsystem: "dist",
		Name:      "handshakes_total",
		Help:      "Handshake attempts by outcome.",
	}, []string{"outcome"})

	// FramesTotal counts frames processed by direction.
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterlink",
		Subsystem: "dist",
		Name:      "frames_total",
		Help:      "Frames processed by direction.",
	}, []string{"direction"})

	// ControlDispatchedTotal counts control tuples dispatched by tag.
	ControlDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterlink",
		Subsystem: "dist",
		Name:      "control_dispatched_total",
		Help:      "Control tuples dispatched to the registry, by tag name.",
	}, []string{"tag"})
)

// Outcome labels for HandshakesTotal.
const (
	OutcomeSuccess       = "success"
	OutcomeVersionMismatch = "version_mismatch"
	OutcomeAuthRejected  = "auth_rejected"
	OutcomeProtocolError = "protocol_error"
)

// Register adds every collector in this package to reg. Call once at
// startup; registering twice against the same registry panics, matching
// prometheus client conventions.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(ActiveConnections, HandshakesTotal, FramesTotal, ControlDispatchedTotal)
}
