package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// EscrowAccount is the module account that holds entry and extra-attempt fees
// while a case is open.
const EscrowAccount = "parallax"

type State struct {
	Height int64 `json:"height"`

	Operator      string           `json:"operator"`
	Params        Params           `json:"params"`
	CurrentCaseID uint64           `json:"currentCaseId"`
	Cases         map[uint64]*Case `json:"cases"`

	Balances    map[string]map[string]uint64 `json:"balances"`              // denom -> addr -> amount
	AccountKeys map[string][]byte            `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64            `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection
}

func NewState() *State {
	return &State{
		Height:        0,
		Params:        DefaultParams(),
		CurrentCaseID: 1,
		Cases:         map[uint64]*Case{1: NewCase(1)},
		Balances:      map[string]map[string]uint64{},
		AccountKeys:   map[string][]byte{},
		NonceMax:      map[string]uint64{},
	}
}

// Decode parses a JSON state blob and fills in any missing containers.
func Decode(b []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

func (s *State) normalize() {
	if s.Balances == nil {
		s.Balances = map[string]map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Cases == nil {
		s.Cases = map[uint64]*Case{}
	}
	if s.CurrentCaseID == 0 {
		s.CurrentCaseID = 1
	}
	if s.Cases[s.CurrentCaseID] == nil {
		s.Cases[s.CurrentCaseID] = NewCase(s.CurrentCaseID)
	}
	for _, c := range s.Cases {
		c.normalize()
	}
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := s.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	out, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	return out, nil
}

// CurrentCase returns the case accepting actions.
func (s *State) CurrentCase() *Case {
	return s.Cases[s.CurrentCaseID]
}

func (s *State) AppHash() []byte {
	// Maps are flattened into sorted slices so the hash does not depend on
	// how the state was built.
	type balanceKV struct {
		Denom   string `json:"denom"`
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}

	balances := make([]balanceKV, 0)
	for denom, accts := range s.Balances {
		for addr, bal := range accts {
			if bal == 0 {
				continue
			}
			balances = append(balances, balanceKV{Denom: denom, Addr: addr, Balance: bal})
		}
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Denom != balances[j].Denom {
			return balances[i].Denom < balances[j].Denom
		}
		return balances[i].Addr < balances[j].Addr
	})

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	normalized := struct {
		Height        int64          `json:"height"`
		Operator      string         `json:"operator"`
		Params        Params         `json:"params"`
		CurrentCaseID uint64         `json:"currentCaseId"`
		Cases         []*Case        `json:"cases"`
		Balances      []balanceKV    `json:"balances"`
		AccountKeys   []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax      []nonceKV      `json:"nonceMax,omitempty"`
	}{
		Height:        s.Height,
		Operator:      s.Operator,
		Params:        s.Params,
		CurrentCaseID: s.CurrentCaseID,
		Cases:         s.SortedCases(),
		Balances:      balances,
		AccountKeys:   accountKeys,
		NonceMax:      nonces,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// SortedCases returns all cases ordered by id.
func (s *State) SortedCases() []*Case {
	out := make([]*Case, 0, len(s.Cases))
	for _, c := range s.Cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- Bank ----

func (s *State) Balance(denom, addr string) uint64 {
	return s.Balances[denom][addr]
}

func (s *State) Credit(denom, addr string, amount uint64) error {
	accts := s.Balances[denom]
	if accts == nil {
		accts = map[string]uint64{}
		s.Balances[denom] = accts
	}
	bal := accts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	accts[addr] = bal + amount
	return nil
}

func (s *State) Debit(denom, addr string, amount uint64) error {
	bal := s.Balances[denom][addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	if amount == 0 {
		return nil
	}
	s.Balances[denom][addr] = bal - amount
	return nil
}
