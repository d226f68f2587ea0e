package state

import (
	"encoding/json"
	"fmt"
)

// CaseStatus is the lifecycle phase of a case.
type CaseStatus uint8

const (
	CasePending CaseStatus = iota
	CaseActive
	CaseCompleted
	CaseCancelled
)

var caseStatusNames = map[CaseStatus]string{
	CasePending:   "pending",
	CaseActive:    "active",
	CaseCompleted: "completed",
	CaseCancelled: "cancelled",
}

func (s CaseStatus) String() string {
	if n, ok := caseStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further lifecycle transition is possible.
func (s CaseStatus) Terminal() bool {
	return s == CaseCompleted || s == CaseCancelled
}

func (s CaseStatus) MarshalJSON() ([]byte, error) {
	n, ok := caseStatusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown case status %d", uint8(s))
	}
	return json.Marshal(n)
}

func (s *CaseStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("case status: %w", err)
	}
	st, err := ParseCaseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseCaseStatus(raw string) (CaseStatus, error) {
	for st, n := range caseStatusNames {
		if n == raw {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown case status %q", raw)
}

type Params struct {
	Denom             string `json:"denom"`
	EntryFee          uint64 `json:"entryFee"`
	ExtraSolutionFee  uint64 `json:"extraSolutionFee"`
	CommissionPercent uint32 `json:"commissionPercent"`
}

// DefaultParams mirrors the deployed contract: 10 USDC entry (6 decimals) and a
// 10% operator commission.
func DefaultParams() Params {
	return Params{
		Denom:             "uusdc",
		EntryFee:          10_000000,
		ExtraSolutionFee:  1_000000,
		CommissionPercent: 10,
	}
}

func (p Params) Validate() error {
	if p.Denom == "" {
		return fmt.Errorf("params.denom must be set")
	}
	if p.EntryFee == 0 {
		return fmt.Errorf("params.entryFee must be > 0")
	}
	if p.CommissionPercent > 100 {
		return fmt.Errorf("params.commissionPercent must be <= 100, got %d", p.CommissionPercent)
	}
	return nil
}

// Settlement records how a completed case paid out.
type Settlement struct {
	TotalPrize     uint64 `json:"totalPrize"`
	Commission     uint64 `json:"commission"`
	SolverPool     uint64 `json:"solverPool"`
	PerSolver      uint64 `json:"perSolver"`
	Remainder      uint64 `json:"remainder"`
	OperatorPayout uint64 `json:"operatorPayout"`
	ExtraFees      uint64 `json:"extraFees,omitempty"`
}

type Case struct {
	ID           uint64     `json:"id"`
	Status       CaseStatus `json:"status"`
	CrimeInfoRef string     `json:"crimeInfoRef,omitempty"`

	Deposited     map[string]bool   `json:"deposited,omitempty"`
	DepositOrder  []string          `json:"depositOrder,omitempty"`
	Solvers       []string          `json:"solvers,omitempty"`
	ExtraAttempts map[string]uint64 `json:"extraAttempts,omitempty"`

	Settlement *Settlement `json:"settlement,omitempty"`
}

func NewCase(id uint64) *Case {
	return &Case{
		ID:            id,
		Status:        CasePending,
		Deposited:     map[string]bool{},
		ExtraAttempts: map[string]uint64{},
	}
}

func (c *Case) normalize() {
	if c.Deposited == nil {
		c.Deposited = map[string]bool{}
	}
	if c.ExtraAttempts == nil {
		c.ExtraAttempts = map[string]uint64{}
	}
}

func (c *Case) HasDeposited(addr string) bool {
	return c.Deposited[addr]
}

func (c *Case) IsSolver(addr string) bool {
	for _, s := range c.Solvers {
		if s == addr {
			return true
		}
	}
	return false
}

// TotalExtraAttempts sums the paid extra attempts across all players.
func (c *Case) TotalExtraAttempts() (uint64, error) {
	var total uint64
	for addr, n := range c.ExtraAttempts {
		if total > ^uint64(0)-n {
			return 0, fmt.Errorf("extra attempts overflow at %q", addr)
		}
		total += n
	}
	return total, nil
}

// AccumulatedBalance is the amount the escrow owes to this case. It is zero
// once the case is terminal.
func (c *Case) AccumulatedBalance(p Params) (uint64, error) {
	if c.Status.Terminal() {
		return 0, nil
	}
	n := uint64(len(c.DepositOrder))
	if n != 0 && p.EntryFee > ^uint64(0)/n {
		return 0, fmt.Errorf("entry fees overflow uint64")
	}
	entries := n * p.EntryFee

	attempts, err := c.TotalExtraAttempts()
	if err != nil {
		return 0, err
	}
	if attempts != 0 && p.ExtraSolutionFee > ^uint64(0)/attempts {
		return 0, fmt.Errorf("extra fees overflow uint64")
	}
	extra := attempts * p.ExtraSolutionFee
	if entries > ^uint64(0)-extra {
		return 0, fmt.Errorf("case balance overflows uint64")
	}
	return entries + extra, nil
}
