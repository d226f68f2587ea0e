package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenesisCmd(t *testing.T) {
	pub := make([]byte, ed25519.PublicKeySize)
	pub[0] = 1
	out, err := runCmd(t, "genesis",
		"--operator", "op",
		"--operator-pubkey", base64.StdEncoding.EncodeToString(pub),
		"--entry-fee", "5000000",
	)
	require.NoError(t, err)

	g, err := state.DecodeGenesis([]byte(out))
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	require.Equal(t, "op", g.Operator)
	require.Equal(t, uint64(5_000000), g.Params.EntryFee)
	require.Equal(t, uint32(10), g.Params.CommissionPercent)

	st, err := state.NewStateFromGenesis(g)
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.CurrentCaseID)
}

func TestGenesisCmd_Rejects(t *testing.T) {
	_, err := runCmd(t, "genesis", "--operator", "op", "--operator-pubkey", "AAAA")
	require.ErrorContains(t, err, "pubKey must be")

	pub := base64.StdEncoding.EncodeToString(make([]byte, ed25519.PublicKeySize))
	_, err = runCmd(t, "genesis", "--operator", "op", "--operator-pubkey", pub, "--commission", "101")
	require.ErrorContains(t, err, "commissionPercent")

	_, err = runCmd(t, "genesis", "--operator-pubkey", pub)
	require.Error(t, err)
}

func TestKeygenCmd(t *testing.T) {
	out, err := runCmd(t, "keygen")
	require.NoError(t, err)

	var keys struct {
		PubKey  string `json:"pubKey"`
		PrivKey string `json:"privKey"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	pub, err := base64.StdEncoding.DecodeString(keys.PubKey)
	require.NoError(t, err)
	priv, err := base64.StdEncoding.DecodeString(keys.PrivKey)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, []byte("parallax"))
	require.True(t, ed25519.Verify(pub, []byte("parallax"), sig))
}
