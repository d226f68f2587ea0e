// Package metrics exposes Prometheus collectors for the Parallax node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/polluterofminds/parallax-contract/internal/events"
)

const namespace = "parallax"

type Metrics struct {
	txTotal     *prometheus.CounterVec
	eventsTotal *prometheus.CounterVec
	transferred *prometheus.CounterVec
	currentCase prometheus.Gauge
	height      prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		txTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_total",
				Help:      "Delivered transactions by type and result",
			},
			[]string{"type", "result"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed ledger events by type",
			},
			[]string{"type"},
		),
		transferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transferred_amount_total",
				Help:      "Amount moved in and out of escrow, by flow",
			},
			[]string{"flow"},
		),
		currentCase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_case_id",
			Help:      "Id of the current case",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Last finalized block height",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.txTotal, m.eventsTotal, m.transferred, m.currentCase, m.height)
	}
	return m
}

func (m *Metrics) ObserveTx(typ string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.txTotal.WithLabelValues(typ, result).Inc()
}

// ObserveEvents counts committed events and the amounts they move.
func (m *Metrics) ObserveEvents(evs []events.Event) {
	if m == nil {
		return
	}
	for _, ev := range evs {
		m.eventsTotal.WithLabelValues(ev.Type()).Inc()
		switch e := ev.(type) {
		case events.PlayerDeposited:
			m.transferred.WithLabelValues("deposit").Add(float64(e.Amount))
		case events.ExtraAttemptPurchased:
			m.transferred.WithLabelValues("extra_attempt").Add(float64(e.Amount))
		case events.SolverPaid:
			m.transferred.WithLabelValues("solver_payout").Add(float64(e.Amount))
		case events.CaseEnded:
			m.transferred.WithLabelValues("operator_payout").Add(float64(e.OperatorPayout + e.ExtraFees))
		case events.PlayerRefunded:
			m.transferred.WithLabelValues("refund").Add(float64(e.Amount))
		case events.TokensRecovered:
			m.transferred.WithLabelValues("recovered").Add(float64(e.Amount))
		}
	}
}

func (m *Metrics) SetCurrentCase(id uint64) {
	if m == nil {
		return
	}
	m.currentCase.Set(float64(id))
}

func (m *Metrics) SetHeight(h int64) {
	if m == nil {
		return
	}
	m.height.Set(float64(h))
}
