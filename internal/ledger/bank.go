package ledger

import (
	"fmt"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

// Bank moves one denomination between principals and the ledger escrow. A
// non-nil error is a failed transfer and aborts the calling operation.
type Bank interface {
	TransferIn(from string, amount uint64) error
	TransferOut(to string, amount uint64) error
	BalanceOf(addr string) uint64
}

// BankProvider binds a Bank to a (staged) state and a denomination.
type BankProvider func(st *state.State, denom string) Bank

// StateBank keeps balances in the application state; the escrow is the
// state.EscrowAccount module account.
type StateBank struct {
	st    *state.State
	denom string
}

var _ Bank = StateBank{}

func NewStateBank(st *state.State, denom string) Bank {
	return StateBank{st: st, denom: denom}
}

func (b StateBank) TransferIn(from string, amount uint64) error {
	if from == "" {
		return fmt.Errorf("missing sender")
	}
	if err := b.st.Debit(b.denom, from, amount); err != nil {
		return err
	}
	return b.st.Credit(b.denom, state.EscrowAccount, amount)
}

func (b StateBank) TransferOut(to string, amount uint64) error {
	if to == "" {
		return fmt.Errorf("missing recipient")
	}
	if err := b.st.Debit(b.denom, state.EscrowAccount, amount); err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	return b.st.Credit(b.denom, to, amount)
}

func (b StateBank) BalanceOf(addr string) uint64 {
	return b.st.Balance(b.denom, addr)
}
