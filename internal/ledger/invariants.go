package ledger

import (
	"fmt"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

// CheckInvariants verifies the structural ledger invariants:
//   - cases are numbered 1..CurrentCaseID with no gaps
//   - only the current case may be open; every earlier case is terminal
//   - deposit set and deposit order agree and hold no duplicates
//   - solvers are unique depositors
//   - a case past pending carries a crime-info reference
//   - a cancelled case keeps no participants
//
// Escrow balances are deliberately not checked here: RecoverTokens may drain
// funds owed to an open case.
func CheckInvariants(st *state.State) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if st.CurrentCaseID == 0 {
		return fmt.Errorf("current case id must be > 0")
	}
	if uint64(len(st.Cases)) != st.CurrentCaseID {
		return fmt.Errorf("have %d cases, want %d", len(st.Cases), st.CurrentCaseID)
	}
	for id := uint64(1); id <= st.CurrentCaseID; id++ {
		c := st.Cases[id]
		if c == nil {
			return fmt.Errorf("case %d missing", id)
		}
		if c.ID != id {
			return fmt.Errorf("case stored under %d has id %d", id, c.ID)
		}
		if id < st.CurrentCaseID && !c.Status.Terminal() {
			return fmt.Errorf("case %d is %s but case %d is current", id, c.Status, st.CurrentCaseID)
		}
		if err := checkCase(c); err != nil {
			return fmt.Errorf("case %d: %w", id, err)
		}
	}
	return nil
}

func checkCase(c *state.Case) error {
	activated := c.Status == state.CaseActive || c.Status == state.CaseCompleted
	if activated && c.CrimeInfoRef == "" {
		return fmt.Errorf("%s without crime info reference", c.Status)
	}

	seen := make(map[string]bool, len(c.DepositOrder))
	for _, p := range c.DepositOrder {
		if seen[p] {
			return fmt.Errorf("%q deposited twice", p)
		}
		seen[p] = true
		if !c.Deposited[p] {
			return fmt.Errorf("%q in deposit order but not marked deposited", p)
		}
	}
	for p, ok := range c.Deposited {
		if ok && !seen[p] {
			return fmt.Errorf("%q marked deposited but not in deposit order", p)
		}
	}

	solvers := make(map[string]bool, len(c.Solvers))
	for _, s := range c.Solvers {
		if solvers[s] {
			return fmt.Errorf("%q solved twice", s)
		}
		solvers[s] = true
		if !seen[s] {
			return fmt.Errorf("solver %q never deposited", s)
		}
	}
	for p, n := range c.ExtraAttempts {
		if n != 0 && !seen[p] {
			return fmt.Errorf("%q bought extra attempts without depositing", p)
		}
	}

	if c.Status == state.CaseCancelled && (len(c.DepositOrder) != 0 || len(c.Solvers) != 0) {
		return fmt.Errorf("cancelled case still holds participants")
	}
	if c.Status == state.CaseCompleted && c.Settlement == nil {
		return fmt.Errorf("completed without settlement record")
	}
	return nil
}
