package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightrecorder"

// Outcome labels for processed work items.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Collector holds the background queue metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	enqueued  *prometheus.CounterVec
	processed *prometheus.CounterVec
	depth     *prometheus.GaugeVec
	duration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the queue metrics on reg. reg is also used to serve
// Handler when it implements prometheus.Gatherer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_items_enqueued_total",
			Help:      "Work items accepted onto a background queue.",
		}, []string{"queue"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_items_processed_total",
			Help:      "Work items taken off a queue and run to completion.",
		}, []string{"queue", "outcome"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Work items waiting on a queue.",
		}, []string{"queue"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "work_item_duration_seconds",
			Help:      "Time spent running a work item handler.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"queue"}),
	}
	reg.MustRegister(c.enqueued, c.processed, c.depth, c.duration)
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	return c
}

// Enqueued counts an accepted item and records the resulting queue depth.
func (c *Collector) Enqueued(queue string, depth int) {
	if c == nil {
		return
	}
	c.enqueued.WithLabelValues(queue).Inc()
	c.depth.WithLabelValues(queue).Set(float64(depth))
}

// Depth records the number of items waiting on queue.
func (c *Collector) Depth(queue string, depth int) {
	if c == nil {
		return
	}
	c.depth.WithLabelValues(queue).Set(float64(depth))
}

// Processed counts a finished item by outcome and observes its run time.
func (c *Collector) Processed(queue, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.processed.WithLabelValues(queue, outcome).Inc()
	c.duration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// Handler serves the registered metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
