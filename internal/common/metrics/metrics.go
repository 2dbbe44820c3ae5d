package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/graph"
)

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	reg *prometheus.Registry

	Queries       *prometheus.CounterVec   // kind, outcome
	QueryDuration *prometheus.HistogramVec // kind
	Reloads       *prometheus.CounterVec   // outcome

	BuildDuration prometheus.Histogram
	GraphStops    prometheus.Gauge
	GraphTrips    prometheus.Gauge
	Connections   prometheus.Gauge
	Transfers     prometheus.Gauge
	RejectedTrips prometheus.Gauge
	LastReload    prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_queries_total",
			Help: "Queries answered, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_query_duration_seconds",
			Help:    "Time spent answering a query.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"kind"}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_reloads_total",
			Help: "Timetable reload attempts, by outcome.",
		}, []string{"outcome"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_build_duration_seconds",
			Help:    "Time to load a timetable and build its connection graph.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		GraphStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_stops",
			Help: "Stops in the published graph.",
		}),
		GraphTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_trips",
			Help: "Trips contributing connections to the published graph.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_connections",
			Help: "Connections in the published graph.",
		}),
		Transfers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_transfers",
			Help: "Walking transfer edges in the published graph.",
		}),
		RejectedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_graph_rejected_trips",
			Help: "Trips left out of the published graph for running backwards in time.",
		}),
		LastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_last_reload_timestamp_seconds",
			Help: "Unix time of the last published snapshot.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.Queries, c.QueryDuration, c.Reloads,
		c.BuildDuration, c.GraphStops, c.GraphTrips, c.Connections, c.Transfers, c.RejectedTrips, c.LastReload,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
	)

	return c
}

func (c *Collector) ObserveQuery(kind, outcome string, took time.Duration) {
	c.Queries.WithLabelValues(kind, outcome).Inc()
	c.QueryDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (c *Collector) ObserveBuild(stats graph.Stats, took time.Duration) {
	c.BuildDuration.Observe(took.Seconds())
	c.GraphStops.Set(float64(stats.Stops))
	c.GraphTrips.Set(float64(stats.Trips))
	c.Connections.Set(float64(stats.Connections))
	c.Transfers.Set(float64(stats.Transfers))
	c.RejectedTrips.Set(float64(stats.RejectedTrips))
	c.LastReload.SetToCurrentTime()
}

func (c *Collector) ObserveReload(outcome string) {
	c.Reloads.WithLabelValues(outcome).Inc()
}

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server error", "error", err)
		}
	}()
	log.Info("Metrics listening", "addr", addr)
	return srv
}
