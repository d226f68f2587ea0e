package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/polluterofminds/parallax-contract/internal/events"
)

func TestObserveTx(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveTx("parallax/deposit", true)
	m.ObserveTx("parallax/deposit", true)
	m.ObserveTx("parallax/deposit", false)

	require.Equal(t, 2.0, testutil.ToFloat64(m.txTotal.WithLabelValues("parallax/deposit", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txTotal.WithLabelValues("parallax/deposit", "error")))
}

func TestObserveEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEvents([]events.Event{
		events.PlayerDeposited{CaseID: 1, Player: "a", Amount: 10, PlayerCount: 1},
		events.PlayerDeposited{CaseID: 1, Player: "b", Amount: 10, PlayerCount: 2},
		events.SolverPaid{CaseID: 1, Solver: "a", Amount: 18},
		events.CaseEnded{CaseID: 1, OperatorPayout: 2, ExtraFees: 3},
	})

	require.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues(events.TypePlayerDeposited)))
	require.Equal(t, 20.0, testutil.ToFloat64(m.transferred.WithLabelValues("deposit")))
	require.Equal(t, 18.0, testutil.ToFloat64(m.transferred.WithLabelValues("solver_payout")))
	require.Equal(t, 5.0, testutil.ToFloat64(m.transferred.WithLabelValues("operator_payout")))
}

func TestGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetCurrentCase(3)
	m.SetHeight(42)
	require.Equal(t, 3.0, testutil.ToFloat64(m.currentCase))
	require.Equal(t, 42.0, testutil.ToFloat64(m.height))

	n, err := testutil.GatherAndCount(reg, "parallax_current_case_id", "parallax_block_height")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveTx("x", true)
		m.ObserveEvents([]events.Event{events.CaseCreated{CaseID: 2}})
		m.SetCurrentCase(1)
		m.SetHeight(1)
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
