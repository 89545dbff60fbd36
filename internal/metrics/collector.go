package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/mission-realtime/internal/connection"
	"github.com/rickgao/mission-realtime/internal/protocol"
	"github.com/rickgao/mission-realtime/internal/router"
)

const namespace = "realtime"

var states = []connection.State{
	connection.StateDisconnected,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateAuthenticated,
	connection.StateReconnecting,
	connection.StateError,
}

// Collector owns a private registry and the client's metrics.
type Collector struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	authenticated prometheus.Gauge
	transitions   *prometheus.CounterVec
	reconnects    prometheus.Counter
	reconnectWait prometheus.Histogram

	framesSent   *prometheus.CounterVec
	framesQueued *prometheus.CounterVec
	queueDropped *prometheus.CounterVec
	sendFailures *prometheus.CounterVec

	dispatched  *prometheus.CounterVec
	parseErrors prometheus.Counter
	panics      *prometheus.CounterVec
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the connection's current state, 0 otherwise.",
		}, []string{"state"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "authenticated",
			Help:      "Whether the session is authenticated.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Connection state transitions by target state.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled reconnect attempts.",
		}),
		reconnectWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay before each reconnect attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the socket by message type.",
		}, []string{"type"}),
		framesQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_queued_total",
			Help:      "Frames held in the offline queue by message type.",
		}, []string{"type"}),
		queueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Queued frames evicted because the queue was full.",
		}, []string{"type"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Socket writes that failed by message type.",
		}, []string{"type"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Inbound envelopes dispatched by message type.",
		}, []string{"type"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Inbound frames dropped as malformed.",
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Listener panics recovered by message type.",
		}, []string{"type"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.state,
		c.authenticated,
		c.transitions,
		c.reconnects,
		c.reconnectWait,
		c.framesSent,
		c.framesQueued,
		c.queueDropped,
		c.sendFailures,
		c.dispatched,
		c.parseErrors,
		c.panics,
	)

	c.setState(connection.StateDisconnected)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// QueueLength registers a gauge that reports fn at scrape time.
func (c *Collector) QueueLength(fn func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Frames currently waiting in the offline queue.",
	}, func() float64 { return float64(fn()) }))
}

// ObserveStatus records a connection status change. Register it with
// Manager.OnStatus.
func (c *Collector) ObserveStatus(ev connection.StatusEvent) {
	c.setState(ev.State)
	c.transitions.WithLabelValues(ev.State.String()).Inc()

	if ev.Authenticated {
		c.authenticated.Set(1)
	} else {
		c.authenticated.Set(0)
	}

	if ev.State == connection.StateReconnecting {
		c.reconnects.Inc()
		c.reconnectWait.Observe(ev.Delay.Seconds())
	}
}

func (c *Collector) setState(current connection.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}

// ConnectionHooks returns hooks that count outbound traffic.
func (c *Collector) ConnectionHooks() connection.Hooks {
	return connection.Hooks{
		OnFrameSent: func(t protocol.MessageType) {
			c.framesSent.WithLabelValues(string(t)).Inc()
		},
		OnQueued: func(t protocol.MessageType) {
			c.framesQueued.WithLabelValues(string(t)).Inc()
		},
		OnQueueDrop: func(t protocol.MessageType) {
			c.queueDropped.WithLabelValues(string(t)).Inc()
		},
		OnSendFailed: func(t protocol.MessageType, _ error) {
			c.sendFailures.WithLabelValues(string(t)).Inc()
		},
	}
}

// RouterHooks returns hooks that count inbound routing outcomes.
func (c *Collector) RouterHooks() router.Hooks {
	return router.Hooks{
		OnDispatch: func(t protocol.MessageType) {
			c.dispatched.WithLabelValues(string(t)).Inc()
		},
		OnParseError: func(error) {
			c.parseErrors.Inc()
		},
		OnPanic: func(t protocol.MessageType, _ error) {
			c.panics.WithLabelValues(string(t)).Inc()
		},
	}
}
