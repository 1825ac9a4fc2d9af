package runner

import (
	"strings"
	"sync"

	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runnerPrometheusMetrics sync.Once

	commandsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tecnicofs",
			Subsystem: "runner",
			Name:      "commands_applied_total",
			Help:      "Number of commands handed to the namespace by the file front ends.",
		})
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tecnicofs",
			Subsystem: "runner",
			Name:      "queue_depth",
			Help:      "Commands waiting in the pipeline queue.",
		})
)

// RegisterMetrics exposes the runner metrics on the default registry
func RegisterMetrics() {
	runnerPrometheusMetrics.Do(func() {
		prometheus.MustRegister(commandsApplied)
		prometheus.MustRegister(queueDepth)
	})
}

// LogMetricsSummary logs every tecnicofs counter gathered from g at info
// level
func LogMetricsSummary(g prometheus.Gatherer) {
	logger := util.GetLogger("Metrics")

	families, err := g.Gather()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to gather metrics")
		return
	}
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), "tecnicofs_") {
			continue
		}
		for _, m := range family.GetMetric() {
			counter := m.GetCounter()
			if counter == nil {
				continue
			}
			event := logger.Info().Str("metric", family.GetName())
			for _, label := range m.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			event.Float64("value", counter.GetValue()).Msg("Counter")
		}
	}
}
