// Package metrics collects Prometheus metrics for captures, external AI
// calls, the audio cache and realtime subscriptions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services report to.
type Recorder interface {
	RecordCapture(outcome string)
	RecordExternalCall(service string, duration time.Duration, err error)
	RecordAudioCache(hit bool)
	RecordItemsDeleted(count int)
	RecordPersistenceFailure(op string)
	AddSubscriptions(delta int)
}

// Capture outcomes.
const (
	CaptureClassified = "classified"
	CaptureFailed     = "failed"
	CaptureCommitted  = "committed"
	CaptureDiscarded  = "discarded"
)

// Collector is the Prometheus Recorder.
type Collector struct {
	captures      *prometheus.CounterVec
	externalCalls *prometheus.CounterVec
	externalTime  *prometheus.HistogramVec
	audioCache    *prometheus.CounterVec
	itemsDeleted  prometheus.Counter
	persistFail   *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindbank_captures_total",
			Help: "Capture pipeline transitions by outcome",
		}, []string{"outcome"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindbank_external_calls_total",
			Help: "Calls to external APIs by service and result",
		}, []string{"service", "result"}),
		externalTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindbank_external_call_seconds",
			Help:    "Latency of external API calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		audioCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindbank_audio_cache_lookups_total",
			Help: "Audio cache lookups by result",
		}, []string{"result"}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mindbank_items_deleted_total",
			Help: "Items deleted, including bulk clears",
		}),
		persistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindbank_persistence_failures_total",
			Help: "Rejected store operations by operation",
		}, []string{"op"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mindbank_active_subscriptions",
			Help: "Open realtime item subscriptions",
		}),
	}

	reg.MustRegister(
		c.captures,
		c.externalCalls,
		c.externalTime,
		c.audioCache,
		c.itemsDeleted,
		c.persistFail,
		c.subscriptions,
	)
	return c
}

func (c *Collector) RecordCapture(outcome string) {
	c.captures.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordExternalCall(service string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.externalCalls.WithLabelValues(service, result).Inc()
	c.externalTime.WithLabelValues(service).Observe(duration.Seconds())
}

func (c *Collector) RecordAudioCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.audioCache.WithLabelValues(result).Inc()
}

func (c *Collector) RecordItemsDeleted(count int) {
	c.itemsDeleted.Add(float64(count))
}

func (c *Collector) RecordPersistenceFailure(op string) {
	c.persistFail.WithLabelValues(op).Inc()
}

func (c *Collector) AddSubscriptions(delta int) {
	c.subscriptions.Add(float64(delta))
}

// Nop discards everything. It is the default for CLI commands and tests.
type Nop struct{}

func (Nop) RecordCapture(string)                            {}
func (Nop) RecordExternalCall(string, time.Duration, error) {}
func (Nop) RecordAudioCache(bool)                           {}
func (Nop) RecordItemsDeleted(int)                          {}
func (Nop) RecordPersistenceFailure(string)                 {}
func (Nop) AddSubscriptions(int)                            {}

// Handler serves the gathered metrics for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Since reports an external call that started at start.
func Since(r Recorder, service string, start time.Time, err error) {
	r.RecordExternalCall(service, time.Since(start), err)
}
