package daemon

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics tracks daemon statistics as Prometheus collectors on a private
// registry so several servers (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	eventsSent       prometheus.Counter
	eventsReceived   prometheus.Counter
	eventsDropped    prometheus.Counter
	joins            prometheus.Counter
	connectedClients prometheus.Gauge
	joinedBoards     prometheus.Gauge

	StartTime time.Time
}

// NewMetrics creates and registers the daemon collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "events_sent_total",
			Help: "Events written to client send queues.",
		}),
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "events_received_total",
			Help: "Events published by clients.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "events_dropped_total",
			Help: "Events dropped because a queue was full.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "board_joins_total",
			Help: "Board join requests.",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "connected_clients",
			Help: "Currently connected clients.",
		}),
		joinedBoards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tablero", Subsystem: "daemon", Name: "joined_boards",
			Help: "Distinct boards with at least one joined client.",
		}),
		StartTime: time.Now(),
	}

	m.registry.MustRegister(
		m.eventsSent, m.eventsReceived, m.eventsDropped, m.joins,
		m.connectedClients, m.joinedBoards,
	)
	return m
}

// Registry exposes the collectors for scraping
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncEventsSent()                { m.eventsSent.Inc() }
func (m *Metrics) IncEventsReceived()            { m.eventsReceived.Inc() }
func (m *Metrics) IncEventsDropped()             { m.eventsDropped.Inc() }
func (m *Metrics) IncJoins()                     { m.joins.Inc() }
func (m *Metrics) SetConnectedClients(count int) { m.connectedClients.Set(float64(count)) }
func (m *Metrics) SetJoinedBoards(count int)     { m.joinedBoards.Set(float64(count)) }

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	EventsSent       int64     `json:"events_sent"`
	EventsReceived   int64     `json:"events_received"`
	EventsDropped    int64     `json:"events_dropped"`
	Joins            int64     `json:"joins"`
	ConnectedClients int       `json:"connected_clients"`
	JoinedBoards     int       `json:"joined_boards"`
	StartTime        time.Time `json:"start_time"`
	Uptime           string    `json:"uptime"`
}

// GetSnapshot reads the current collector values
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsSent:       int64(counterValue(m.eventsSent)),
		EventsReceived:   int64(counterValue(m.eventsReceived)),
		EventsDropped:    int64(counterValue(m.eventsDropped)),
		Joins:            int64(counterValue(m.joins)),
		ConnectedClients: int(gaugeValue(m.connectedClients)),
		JoinedBoards:     int(gaugeValue(m.joinedBoards)),
		StartTime:        m.StartTime,
		Uptime:           time.Since(m.StartTime).Round(time.Second).String(),
	}
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var out dto.Metric
	if err := g.Write(&out); err != nil {
		return 0
	}
	return out.GetGauge().GetValue()
}
