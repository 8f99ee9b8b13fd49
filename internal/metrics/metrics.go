package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fleet-tracker/internal/fleet"
	"fleet-tracker/internal/gui"
	"fleet-tracker/internal/publisher"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveBuses   prometheus.Gauge
	BusesStarted  prometheus.Counter
	BusesFinished prometheus.Counter
	SubSteps      *prometheus.CounterVec // pace label: conflict|free

	RenderQueue    prometheus.Gauge
	RenderDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	Speed    prometheus.Gauge
	Substeps prometheus.Gauge
}

func NewCollector(speed float64, substeps int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveBuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_active_buses",
			Help: "Number of buses currently animating.",
		}),
		BusesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_buses_started_total",
			Help: "Total buses started.",
		}),
		BusesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_buses_finished_total",
			Help: "Total bus animations that returned.",
		}),
		SubSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_substeps_total",
			Help: "Interpolation sub-steps by pacing branch.",
		}, []string{"pace"}),
		RenderQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_render_queue_depth",
			Help: "Tasks waiting on the render loop.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_render_task_duration_seconds",
			Help:    "Duration of render loop tasks.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		Speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_speed_setting",
			Help: "Current speed slider value.",
		}),
		Substeps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_substeps_per_segment",
			Help: "Interpolation sub-steps per route segment.",
		}),
	}

	reg.MustRegister(
		c.ActiveBuses, c.BusesStarted, c.BusesFinished, c.SubSteps,
		c.RenderQueue, c.RenderDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.Speed, c.Substeps,
	)

	c.Speed.Set(speed)
	c.Substeps.Set(float64(substeps))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server error")
		}
	}()
	log.WithField("addr", addr).Info("metrics listening")
	return srv
}

// Fleet adapts the collector to fleet.Metrics.
func (c *Collector) Fleet() fleet.Metrics { return fleetMetrics{c} }

type fleetMetrics struct{ c *Collector }

func (f fleetMetrics) BusStarted() {
	f.c.BusesStarted.Inc()
	f.c.ActiveBuses.Inc()
}

func (f fleetMetrics) BusFinished() {
	f.c.BusesFinished.Inc()
	f.c.ActiveBuses.Dec()
}

func (f fleetMetrics) SubStep(conflict bool) {
	if conflict {
		f.c.SubSteps.WithLabelValues("conflict").Inc()
		return
	}
	f.c.SubSteps.WithLabelValues("free").Inc()
}

// Loop adapts the collector to gui.LoopMetrics.
func (c *Collector) Loop() gui.LoopMetrics { return loopMetrics{c} }

type loopMetrics struct{ c *Collector }

func (l loopMetrics) RenderQueueDepth(n int)            { l.c.RenderQueue.Set(float64(n)) }
func (l loopMetrics) RenderTaskObserve(d time.Duration) { l.c.RenderDuration.Observe(d.Seconds()) }

// Publisher adapts the collector to publisher.PublisherMetrics.
func (c *Collector) Publisher() publisher.PublisherMetrics { return publisherMetrics{c} }

type publisherMetrics struct{ c *Collector }

func (p publisherMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p publisherMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p publisherMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p publisherMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
