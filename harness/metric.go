package harness

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics contains atomic metrics for a harness run.
// The counters can be read while the run is in progress, e.g. by a prometheus registry
// through Register.
type RunMetrics struct {
	// ConnectAttemptCount indicates the number of connection attempts.
	ConnectAttemptCount atomic.Uint64
	// ConnectErrCount indicates the number of failed connection attempts.
	ConnectErrCount atomic.Uint64

	// ExchangeCount indicates the number of exchanges, including idle ones.
	ExchangeCount atomic.Uint64
	// ExchangeErrCount indicates the number of exchanges that did not succeed.
	ExchangeErrCount atomic.Uint64

	// BytesSentCount indicates the number of payload bytes sent.
	BytesSentCount atomic.Uint64
	// BytesRecvCount indicates the number of response bytes received by successful exchanges.
	BytesRecvCount atomic.Uint64

	// LatencyMicrosTotal indicates the summed latency of successful running exchanges.
	LatencyMicrosTotal atomic.Uint64

	// TestIndexGauge indicates the current test index.
	TestIndexGauge atomic.Int64
	// FailBudgetGauge indicates the remaining fail budget.
	FailBudgetGauge atomic.Int64
}

func (m *RunMetrics) incConnectAttemptCount() {
	m.ConnectAttemptCount.Add(1)
}

func (m *RunMetrics) incConnectErrCount() {
	m.ConnectErrCount.Add(1)
}

func (m *RunMetrics) incExchangeCount() {
	m.ExchangeCount.Add(1)
}

func (m *RunMetrics) incExchangeErrCount() {
	m.ExchangeErrCount.Add(1)
}

func (m *RunMetrics) addBytesSent(n int) {
	m.BytesSentCount.Add(uint64(n)) //nolint:gosec
}

func (m *RunMetrics) addBytesRecv(n int) {
	m.BytesRecvCount.Add(uint64(n)) //nolint:gosec
}

func (m *RunMetrics) addLatencyMicros(us int64) {
	if us > 0 {
		m.LatencyMicrosTotal.Add(uint64(us))
	}
}

func (m *RunMetrics) setTestIndex(idx int) {
	m.TestIndexGauge.Store(int64(idx))
}

func (m *RunMetrics) setFailBudget(budget int) {
	m.FailBudgetGauge.Store(int64(budget))
}

// Collectors returns prometheus collectors reading the metrics, named under namespace.
func (m *RunMetrics) Collectors(namespace string) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	return []prometheus.Collector{
		counter("connect_attempts_total", "Number of connection attempts.", &m.ConnectAttemptCount),
		counter("connect_errors_total", "Number of failed connection attempts.", &m.ConnectErrCount),
		counter("exchanges_total", "Number of exchanges.", &m.ExchangeCount),
		counter("exchange_errors_total", "Number of exchanges that did not succeed.", &m.ExchangeErrCount),
		counter("sent_bytes_total", "Number of payload bytes sent.", &m.BytesSentCount),
		counter("received_bytes_total", "Number of response bytes received.", &m.BytesRecvCount),
		counter("latency_microseconds_total", "Summed latency of successful exchanges.", &m.LatencyMicrosTotal),
		gauge("test_index", "Current test index.", &m.TestIndexGauge),
		gauge("fail_budget", "Remaining fail budget.", &m.FailBudgetGauge),
	}
}

// Register registers the collectors returned by Collectors with reg.
func (m *RunMetrics) Register(reg prometheus.Registerer, namespace string) error {
	for _, c := range m.Collectors(namespace) {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metric: %w", err)
		}
	}

	return nil
}
