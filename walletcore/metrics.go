package walletcore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcome labels.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics counts Manager operations. A nil *Metrics records nothing.
type Metrics struct {
	ops          *prometheus.CounterVec
	syncDuration prometheus.Histogram
	finalBalance prometheus.Gauge
}

// NewMetrics registers the wallet collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libwallet",
			Name:      "operations_total",
			Help:      "Wallet operations by name and outcome.",
		}, []string{"op", "result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "libwallet",
			Name:      "sync_duration_seconds",
			Help:      "Duration of multi-address syncs.",
			Buckets:   prometheus.DefBuckets,
		}),
		finalBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "libwallet",
			Name:      "final_balance_satoshis",
			Help:      "Wallet final balance after the last successful sync.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.syncDuration, m.finalBalance} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeSync(started time.Time, balance uint64, err error) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		m.finalBalance.Set(float64(balance))
	}
}
