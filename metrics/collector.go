// Package metrics records session activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "redistmpl"

// Collector implements redistmpl.MetricsCollector
type Collector struct {
	commands      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	pipelineDepth prometheus.Gauge
	errors        *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Round trip time of executed commands.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"command"}),
		pipelineDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_depth",
			Help:      "Appended commands whose replies have not been drained.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed operations, by error code.",
		}, []string{"code"}),
	}

	for _, m := range []prometheus.Collector{c.commands, c.duration, c.pipelineDepth, c.errors} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordCommand records an executed command
func (c *Collector) RecordCommand(cmd, outcome string, duration time.Duration) {
	c.commands.WithLabelValues(cmd, outcome).Inc()
	c.duration.WithLabelValues(cmd).Observe(duration.Seconds())
}

// RecordPipelineDepth records the current pipeline depth
func (c *Collector) RecordPipelineDepth(depth int) {
	c.pipelineDepth.Set(float64(depth))
}

// RecordError records a failure by code name
func (c *Collector) RecordError(code string) {
	c.errors.WithLabelValues(code).Inc()
}
