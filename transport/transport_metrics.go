package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks bytes transferred by a transport peer, broken down by
// transport_type (rawsocket, websocket).
type Metrics struct {
	transportType string
	outBytes      *prometheus.CounterVec
	inBytes       *prometheus.CounterVec
}

var incomingCounterVec = newIncomingCounterVec()
var outgoingCounterVec = newOutgoingCounterVec()

func newIncomingCounterVec() *prometheus.CounterVec {
	inBytesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonefish_transport_bytes_incoming",
			Help: "Total incoming bytes",
		},
		[]string{"transport_type"},
	)
	prometheus.MustRegister(inBytesCounter)
	return inBytesCounter
}

func newOutgoingCounterVec() *prometheus.CounterVec {
	outBytesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonefish_transport_bytes_outgoing",
			Help: "Total outgoing bytes",
		},
		[]string{"transport_type"},
	)
	prometheus.MustRegister(outBytesCounter)
	return outBytesCounter
}

// NewMetrics returns a Metrics that reports under the given transport_type
// label, sharing the package's registered counter vectors.
func NewMetrics(transportType string) *Metrics {
	return &Metrics{
		transportType: transportType,
		inBytes:       incomingCounterVec,
		outBytes:      outgoingCounterVec,
	}
}

func (m *Metrics) CountIncoming(bytesNum int) {
	m.inBytes.WithLabelValues(m.transportType).Add(float64(bytesNum))
}

func (m *Metrics) CountOutgoing(bytesNum int) {
	m.outBytes.WithLabelValues(m.transportType).Add(float64(bytesNum))
}
