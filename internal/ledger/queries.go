package ledger

import (
	"github.com/polluterofminds/parallax-contract/internal/state"
)

// Read-only queries. They never stage or mutate state.

func (l *Ledger) getCase(id uint64) (*state.Case, error) {
	c := l.st.Cases[id]
	if c == nil {
		return nil, ErrCaseNotFound.Wrapf("case %d not found", id)
	}
	return c, nil
}

func (l *Ledger) CurrentCaseID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.CurrentCaseID
}

func (l *Ledger) Params() state.Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Params
}

func (l *Ledger) Operator() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Operator
}

// Case returns a copy of the case so callers cannot mutate ledger state.
func (l *Ledger) Case(id uint64) (state.Case, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return state.Case{}, err
	}
	out := *c
	out.Deposited = make(map[string]bool, len(c.Deposited))
	for k, v := range c.Deposited {
		out.Deposited[k] = v
	}
	out.ExtraAttempts = make(map[string]uint64, len(c.ExtraAttempts))
	for k, v := range c.ExtraAttempts {
		out.ExtraAttempts[k] = v
	}
	out.DepositOrder = append([]string(nil), c.DepositOrder...)
	out.Solvers = append([]string(nil), c.Solvers...)
	if c.Settlement != nil {
		s := *c.Settlement
		out.Settlement = &s
	}
	return out, nil
}

func (l *Ledger) CaseIDs() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	cases := l.st.SortedCases()
	ids := make([]uint64, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID)
	}
	return ids
}

func (l *Ledger) CaseStatus(id uint64) (state.CaseStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return 0, err
	}
	return c.Status, nil
}

func (l *Ledger) CrimeInfoRef(id uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return "", err
	}
	return c.CrimeInfoRef, nil
}

func (l *Ledger) HasDeposited(id uint64, addr string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return false, err
	}
	return c.HasDeposited(addr), nil
}

func (l *Ledger) PlayerCount(id uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return 0, err
	}
	return uint64(len(c.DepositOrder)), nil
}

func (l *Ledger) Solvers(id uint64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.Solvers...), nil
}

func (l *Ledger) ExtraAttempts(id uint64, addr string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return 0, err
	}
	return c.ExtraAttempts[addr], nil
}

func (l *Ledger) AccumulatedBalance(id uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return 0, err
	}
	bal, err := c.AccumulatedBalance(l.st.Params)
	if err != nil {
		return 0, ErrInvalidRequest.Wrap(err.Error())
	}
	return bal, nil
}

// Settlement returns the payout record of a completed case.
func (l *Ledger) Settlement(id uint64) (state.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, err := l.getCase(id)
	if err != nil {
		return state.Settlement{}, err
	}
	if c.Settlement == nil {
		return state.Settlement{}, ErrInvalidPhase.Wrapf("case %d is %s, not settled", id, c.Status)
	}
	return *c.Settlement, nil
}

func (l *Ledger) EscrowBalance(denom string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banks(l.st, denom).BalanceOf(state.EscrowAccount)
}

func (l *Ledger) Balance(denom, addr string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banks(l.st, denom).BalanceOf(addr)
}
