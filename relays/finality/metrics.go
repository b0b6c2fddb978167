package finality

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blockdeep/exbrid/chain"
)

const metricsNamespace = "exbrid"

const (
	resultSuccess        = "success"
	resultNoSuccessEvent = "no_success_event"
	resultFailed         = "failed_extrinsic"
	resultError          = "error"
)

type Metrics struct {
	observed prometheus.Counter
	latest   prometheus.Gauge
	lagged   prometheus.Counter
	probes   prometheus.Counter
	remarks  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		observed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "finalized_blocks_observed_total",
			Help:      "Finalized Ethereum blocks published to the event bus.",
		}),
		latest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "latest_finalized_block",
			Help:      "Number of the most recently observed finalized Ethereum block.",
		}),
		lagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bus_lagged_records_total",
			Help:      "Records skipped by the submitter because it fell behind the event bus.",
		}),
		probes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "readiness_probe_attempts_total",
			Help:      "Account existence probes issued against the destination chain.",
		}),
		remarks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remarks_total",
			Help:      "Remark submissions by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) recordObserved(record chain.BlockRecord) {
	m.observed.Inc()
	m.latest.Set(float64(record.Number))
}

func (m *Metrics) recordLagged(missed uint64) {
	m.lagged.Add(float64(missed))
}

func (m *Metrics) recordProbe() {
	m.probes.Inc()
}

func (m *Metrics) recordRemark(result string) {
	m.remarks.WithLabelValues(result).Inc()
}
