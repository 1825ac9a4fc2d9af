package filesystem

import (
	"io"
	"sync"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	namespacePrometheusMetrics sync.Once

	namespaceOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tecnicofs",
			Subsystem: "filesystem",
			Name:      "operations_total",
			Help:      "Number of namespace operations applied, by operation and outcome.",
		},
		[]string{"operation", "outcome"})
	namespaceOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tecnicofs",
			Subsystem: "filesystem",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in namespace operations, lock waits included.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"operation"})
)

type metricsNamespace struct {
	base tecnicofs.Namespace
}

// NewMetricsNamespace creates a decorator for Namespace that exposes
// Prometheus metrics on the number, outcome and latency of operations.
func NewMetricsNamespace(base tecnicofs.Namespace) tecnicofs.Namespace {
	namespacePrometheusMetrics.Do(func() {
		prometheus.MustRegister(namespaceOperations)
		prometheus.MustRegister(namespaceOperationDurationSeconds)
	})

	return &metricsNamespace{
		base: base,
	}
}

func observe(operation string, start time.Time, err error) {
	namespaceOperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	namespaceOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *metricsNamespace) Create(path string, kind tecnicofs.NodeType) error {
	start := time.Now()
	err := m.base.Create(path, kind)
	observe("create", start, err)
	return err
}

func (m *metricsNamespace) Delete(path string) error {
	start := time.Now()
	err := m.base.Delete(path)
	observe("delete", start, err)
	return err
}

func (m *metricsNamespace) Lookup(path string) (tecnicofs.Inumber, error) {
	start := time.Now()
	inumber, err := m.base.Lookup(path)
	observe("lookup", start, err)
	return inumber, err
}

func (m *metricsNamespace) Move(src, dst string) error {
	start := time.Now()
	err := m.base.Move(src, dst)
	observe("move", start, err)
	return err
}

func (m *metricsNamespace) PrintTree(w io.Writer) error {
	start := time.Now()
	err := m.base.PrintTree(w)
	observe("print", start, err)
	return err
}

func (m *metricsNamespace) Stat(path string) (tecnicofs.NodeInfo, error) {
	start := time.Now()
	info, err := m.base.Stat(path)
	observe("stat", start, err)
	return info, err
}

func (m *metricsNamespace) ReadDir(path string) ([]tecnicofs.Entry, error) {
	start := time.Now()
	entries, err := m.base.ReadDir(path)
	observe("readdir", start, err)
	return entries, err
}
