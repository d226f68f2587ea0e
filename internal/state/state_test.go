package state

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppHash_StableAcrossMapOrder(t *testing.T) {
	s1 := NewState()
	s1.Height = 7
	require.NoError(t, s1.Credit("uusdc", "bob", 2))
	require.NoError(t, s1.Credit("uusdc", "alice", 1))

	s2 := NewState()
	s2.Height = 7
	require.NoError(t, s2.Credit("uusdc", "alice", 1))
	require.NoError(t, s2.Credit("uusdc", "bob", 2))

	h1 := s1.AppHash()
	h2 := s2.AppHash()
	if !bytes.Equal(h1, h2) {
		t.Fatalf("expected stable app hash; h1=%x h2=%x", h1, h2)
	}

	// Any semantic change should change the hash.
	require.NoError(t, s2.Credit("uusdc", "alice", 8))
	require.False(t, bytes.Equal(h1, s2.AppHash()))

	s3, err := s1.Clone()
	require.NoError(t, err)
	s3.CurrentCase().Status = CaseActive
	require.False(t, bytes.Equal(h1, s3.AppHash()))
}

func TestCreditDebit(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Credit("uusdc", "alice", 10))
	require.NoError(t, s.Debit("uusdc", "alice", 4))
	require.Equal(t, uint64(6), s.Balance("uusdc", "alice"))

	require.ErrorContains(t, s.Debit("uusdc", "alice", 7), "insufficient funds")
	require.ErrorContains(t, s.Debit("other", "alice", 1), "insufficient funds")
	require.NoError(t, s.Debit("other", "alice", 0))

	require.NoError(t, s.Credit("uusdc", "bob", ^uint64(0)))
	require.ErrorContains(t, s.Credit("uusdc", "bob", 1), "overflow")
}

func TestClone_IsDeep(t *testing.T) {
	s := NewState()
	c := s.CurrentCase()
	c.Status = CaseActive
	c.CrimeInfoRef = "ipfs://ref"
	c.Deposited["alice"] = true
	c.DepositOrder = append(c.DepositOrder, "alice")

	cp, err := s.Clone()
	require.NoError(t, err)
	cc := cp.CurrentCase()
	cc.Deposited["bob"] = true
	cc.DepositOrder = append(cc.DepositOrder, "bob")
	cc.Status = CaseCompleted

	require.Len(t, c.DepositOrder, 1)
	require.False(t, c.Deposited["bob"])
	require.Equal(t, CaseActive, c.Status)
}

func TestCaseStatus_JSON(t *testing.T) {
	for _, st := range []CaseStatus{CasePending, CaseActive, CaseCompleted, CaseCancelled} {
		b, err := json.Marshal(st)
		require.NoError(t, err)
		var got CaseStatus
		require.NoError(t, json.Unmarshal(b, &got))
		require.Equal(t, st, got)
	}
	b, _ := json.Marshal(CaseCancelled)
	require.Equal(t, `"cancelled"`, string(b))

	var bad CaseStatus
	require.Error(t, json.Unmarshal([]byte(`"finished"`), &bad))
	_, err := json.Marshal(CaseStatus(9))
	require.Error(t, err)

	require.True(t, CaseCompleted.Terminal())
	require.True(t, CaseCancelled.Terminal())
	require.False(t, CasePending.Terminal())
	require.False(t, CaseActive.Terminal())
}

func TestAccumulatedBalance(t *testing.T) {
	p := DefaultParams()
	c := NewCase(1)
	c.Status = CaseActive
	c.DepositOrder = []string{"a", "b", "c"}
	c.ExtraAttempts["a"] = 2

	got, err := c.AccumulatedBalance(p)
	require.NoError(t, err)
	require.Equal(t, 3*p.EntryFee+2*p.ExtraSolutionFee, got)

	c.Status = CaseCompleted
	got, err = c.AccumulatedBalance(p)
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestDecode_FillsMissingContainers(t *testing.T) {
	st, err := Decode([]byte(`{"height":3,"operator":"op"}`))
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.CurrentCaseID)
	require.NotNil(t, st.CurrentCase())
	require.Equal(t, CasePending, st.CurrentCase().Status)
	require.NotNil(t, st.Balances)
	require.NotNil(t, st.NonceMax)
}

func TestGenesis_Validate(t *testing.T) {
	pub := make([]byte, ed25519.PublicKeySize)

	g := DefaultGenesis("op")
	g.Accounts = []GenesisAccount{{Address: "op", PubKey: pub}}
	require.NoError(t, g.Validate())

	cases := []struct {
		name   string
		mutate func(g *Genesis)
		want   string
	}{
		{"missing operator", func(g *Genesis) { g.Operator = "" }, "operator must be set"},
		{"operator without key", func(g *Genesis) { g.Accounts = nil }, "no registered pubKey"},
		{"zero entry fee", func(g *Genesis) { g.Params.EntryFee = 0 }, "entryFee"},
		{"commission over 100", func(g *Genesis) { g.Params.CommissionPercent = 101 }, "commissionPercent"},
		{"missing denom", func(g *Genesis) { g.Params.Denom = "" }, "denom"},
		{"short key", func(g *Genesis) { g.Accounts[0].PubKey = []byte{1} }, "pubKey must be"},
		{"escrow keyed", func(g *Genesis) {
			g.Accounts = append(g.Accounts, GenesisAccount{Address: EscrowAccount, PubKey: pub})
		}, "escrow account"},
		{"escrow as operator", func(g *Genesis) {
			g.Operator = EscrowAccount
			g.Accounts = []GenesisAccount{{Address: EscrowAccount, PubKey: pub}}
		}, "escrow account"},
		{"escrow funded", func(g *Genesis) {
			g.Balances = []GenesisBalance{{Address: EscrowAccount, Amount: 1}}
		}, "escrow"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := DefaultGenesis("op")
			g.Accounts = []GenesisAccount{{Address: "op", PubKey: pub}}
			tc.mutate(g)
			require.ErrorContains(t, g.Validate(), tc.want)
		})
	}
}

func TestNewStateFromGenesis(t *testing.T) {
	pub := make([]byte, ed25519.PublicKeySize)
	g := DefaultGenesis("op")
	g.Accounts = []GenesisAccount{{Address: "op", PubKey: pub}}
	g.Balances = []GenesisBalance{
		{Address: "alice", Amount: 50},
		{Address: "alice", Denom: "ustray", Amount: 3},
	}

	st, err := NewStateFromGenesis(g)
	require.NoError(t, err)
	require.Equal(t, "op", st.Operator)
	require.Equal(t, uint64(50), st.Balance("uusdc", "alice"))
	require.Equal(t, uint64(3), st.Balance("ustray", "alice"))
	require.Equal(t, CasePending, st.CurrentCase().Status)
	require.Len(t, st.AccountKeys["op"], ed25519.PublicKeySize)
}
