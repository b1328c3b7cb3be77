// Package metrics exposes poll-cycle counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ticketkeeper"

// Metrics holds the daemon's collectors.
type Metrics struct {
	Cycles          prometheus.Counter
	CycleDuration   prometheus.Histogram
	EventsEvaluated prometheus.Counter
	TicketsCreated  prometheus.Counter
	TicketFailures  prometheus.Counter
	EventsCleared   prometheus.Counter
	StoreErrors     *prometheus.CounterVec
	LastCycle       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Number of completed poll cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent evaluating one poll cycle, excluding the sleep",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "evaluated_total",
			Help:      "New events evaluated against the rule sections",
		}),
		TicketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "created_total",
			Help:      "Tickets created by the external command",
		}),
		TicketFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "failed_total",
			Help:      "Ticket command invocations that failed",
		}),
		EventsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "cleared_total",
			Help:      "Events closed by the AUTOCLEAR section",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Event store errors by class",
		}, []string{"class"}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last poll cycle finished",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.EventsEvaluated,
		m.TicketsCreated,
		m.TicketFailures,
		m.EventsCleared,
		m.StoreErrors,
		m.LastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Server serves /metrics on a TCP address.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// Listen binds addr and prepares the metrics endpoint.
func Listen(addr string, m *Metrics) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until Shutdown is called.
func (s *Server) Serve() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
