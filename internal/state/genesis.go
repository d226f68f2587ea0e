package state

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

type GenesisAccount struct {
	Address string `json:"address"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

type GenesisBalance struct {
	Address string `json:"address"`
	Denom   string `json:"denom,omitempty"` // defaults to params.denom
	Amount  uint64 `json:"amount"`
}

// Genesis is the app_state carried by InitChain.
type Genesis struct {
	Operator string           `json:"operator"`
	Params   Params           `json:"params"`
	Accounts []GenesisAccount `json:"accounts,omitempty"`
	Balances []GenesisBalance `json:"balances,omitempty"`
}

func DefaultGenesis(operator string) *Genesis {
	return &Genesis{
		Operator: operator,
		Params:   DefaultParams(),
	}
}

func DecodeGenesis(b []byte) (*Genesis, error) {
	var g Genesis
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &g, nil
}

func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis state is nil")
	}
	if g.Operator == "" {
		return fmt.Errorf("operator must be set")
	}
	if err := g.Params.Validate(); err != nil {
		return err
	}

	operatorKeyed := false
	seen := make(map[string]bool, len(g.Accounts))
	for _, a := range g.Accounts {
		if a.Address == "" {
			return fmt.Errorf("account address must be set")
		}
		if a.Address == EscrowAccount {
			return fmt.Errorf("escrow account %q cannot hold a pubKey", EscrowAccount)
		}
		if seen[a.Address] {
			return fmt.Errorf("duplicate account %q", a.Address)
		}
		seen[a.Address] = true
		if len(a.PubKey) != ed25519.PublicKeySize {
			return fmt.Errorf("account %q pubKey must be %d bytes", a.Address, ed25519.PublicKeySize)
		}
		if a.Address == g.Operator {
			operatorKeyed = true
		}
	}
	if !operatorKeyed {
		return fmt.Errorf("operator %q has no registered pubKey", g.Operator)
	}

	for _, b := range g.Balances {
		if b.Address == "" {
			return fmt.Errorf("balance address must be set")
		}
		if b.Address == EscrowAccount {
			return fmt.Errorf("genesis cannot fund the escrow account")
		}
	}
	return nil
}

// NewStateFromGenesis builds the initial state: case 1 pending, keys and
// balances loaded.
func NewStateFromGenesis(g *Genesis) (*State, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	st := NewState()
	st.Operator = g.Operator
	st.Params = g.Params
	for _, a := range g.Accounts {
		st.AccountKeys[a.Address] = append([]byte(nil), a.PubKey...)
	}
	for _, b := range g.Balances {
		denom := b.Denom
		if denom == "" {
			denom = g.Params.Denom
		}
		if err := st.Credit(denom, b.Address, b.Amount); err != nil {
			return nil, fmt.Errorf("genesis balance %q: %w", b.Address, err)
		}
	}
	return st, nil
}
