package resocket

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "resocket"

// Metrics holds the prometheus collectors a Socket reports to. Several
// sockets may share one Metrics; they are told apart by the "socket" label.
type Metrics struct {
	ConnectAttemptsTotal *prometheus.CounterVec
	MessagesReceived     *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	ConnectionState      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConnectAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by outcome (open, timeout, refused, error).",
		}, []string{"socket", "result"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound frames with a non-empty payload.",
		}, []string{"socket"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors delivered to the error handler, by kind.",
		}, []string{"socket", "kind"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state of the socket, 0 for the others.",
		}, []string{"socket", "state"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.ConnectAttemptsTotal,
			m.MessagesReceived,
			m.ErrorsTotal,
			m.ConnectionState,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) attempt(socket, result string) {
	if m == nil {
		return
	}
	m.ConnectAttemptsTotal.WithLabelValues(socket, result).Inc()
}

func (m *Metrics) message(socket string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(socket).Inc()
}

func (m *Metrics) error(socket string, kind ErrorKind) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(socket, kind.String()).Inc()
}

func (m *Metrics) state(socket string, state ConnectionState) {
	if m == nil {
		return
	}
	for _, s := range []ConnectionState{StateConnecting, StateOpen, StateReconnecting, StateClosed} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(socket, s.String()).Set(v)
	}
}
