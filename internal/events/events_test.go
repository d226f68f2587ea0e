package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_FlattensAttributes(t *testing.T) {
	rec := NewRecord(12, 3, CaseEnded{
		CaseID:         4,
		Solvers:        []string{"alice", "bob"},
		TotalPrize:     20,
		Commission:     2,
		PerSolver:      9,
		OperatorPayout: 2,
	})
	require.Equal(t, int64(12), rec.Height)
	require.Equal(t, 3, rec.TxIndex)
	require.Equal(t, TypeCaseEnded, rec.Type)
	require.Equal(t, "4", rec.Attributes["caseId"])
	require.Equal(t, "alice,bob", rec.Attributes["solvers"])
	require.Equal(t, "9", rec.Attributes["perSolver"])

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	require.Contains(t, string(b), `"type":"CaseEnded"`)
}

func TestCategory(t *testing.T) {
	cases := map[string]string{
		TypeCaseActivated:         "case",
		TypeCaseCancelled:         "case",
		TypePlayerDeposited:       "deposit",
		TypeExtraAttemptPurchased: "deposit",
		TypeSolutionSubmitted:     "solution",
		TypeSolverPaid:            "payout",
		TypePlayerRefunded:        "payout",
		TypeTokensRecovered:       "payout",
		"BankSent":                "other",
	}
	for typ, want := range cases {
		require.Equal(t, want, Category(typ), typ)
	}
}

func TestEveryEventHasCaseOrDenom(t *testing.T) {
	all := []Event{
		CaseActivated{CaseID: 1, CrimeInfoRef: "r"},
		CaseStatusChanged{CaseID: 1, From: "pending", To: "active"},
		PlayerDeposited{CaseID: 1, Player: "a", Amount: 1, PlayerCount: 1},
		SolutionSubmitted{CaseID: 1, Player: "a", SolverCount: 1},
		ExtraAttemptPurchased{CaseID: 1, Player: "a", Amount: 1, Attempts: 1},
		SolverPaid{CaseID: 1, Solver: "a", Amount: 1},
		CaseEnded{CaseID: 1},
		CaseCreated{CaseID: 2, PreviousCaseID: 1},
		PlayerRefunded{CaseID: 1, Player: "a", Amount: 1},
		CaseCancelled{CaseID: 1},
		TokensRecovered{Denom: "uusdc", To: "op", Amount: 1},
	}
	for _, ev := range all {
		rec := NewRecord(1, 0, ev)
		_, hasCase := rec.Attributes["caseId"]
		_, hasDenom := rec.Attributes["denom"]
		require.True(t, hasCase || hasDenom, ev.Type())
		require.NotEqual(t, "other", Category(ev.Type()), ev.Type())
	}
}

func TestRedisPublisher_Channel(t *testing.T) {
	_, err := NewRedisPublisher(nil, "")
	require.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	p, err := NewRedisPublisher(client, "")
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, "parallax:events:payout", p.Channel(TypeSolverPaid))
	require.Equal(t, "parallax:events:case", p.Channel(TypeCaseEnded))

	// Nothing to send means no round trip.
	require.NoError(t, p.Publish(context.Background(), nil))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NoError(t, p.Publish(context.Background(), []Record{{Type: TypeCaseEnded}}))
	require.NoError(t, p.Close())
}
