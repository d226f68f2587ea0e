// Package events defines the observable outcomes of ledger operations.
//
// The set of event types is closed: only the types in this file implement
// Event. The ABCI layer turns them into indexed tx events and the publisher
// forwards committed ones to off-chain listeners.
package events

import (
	"strconv"
	"strings"
)

// Event type names. CaseActivated replaces the contract's NewCaseStarted, the
// rest keep the contract names.
const (
	TypeCaseActivated         = "CaseActivated"
	TypeCaseStatusChanged     = "CaseStatusChanged"
	TypePlayerDeposited       = "PlayerDeposited"
	TypeSolutionSubmitted     = "SolutionSubmitted"
	TypeExtraAttemptPurchased = "ExtraAttemptPurchased"
	TypeSolverPaid            = "SolverPaid"
	TypeCaseEnded             = "CaseEnded"
	TypeCaseCreated           = "CaseCreated"
	TypePlayerRefunded        = "PlayerRefunded"
	TypeCaseCancelled         = "CaseCancelled"
	TypeTokensRecovered       = "TokensRecovered"
)

type Attribute struct {
	Key   string
	Value string
}

type Event interface {
	Type() string
	Attributes() []Attribute
	isEvent()
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

type CaseActivated struct {
	CaseID       uint64
	CrimeInfoRef string
}

func (CaseActivated) Type() string { return TypeCaseActivated }
func (e CaseActivated) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"crimeInfoRef", e.CrimeInfoRef},
	}
}
func (CaseActivated) isEvent() {}

type CaseStatusChanged struct {
	CaseID uint64
	From   string
	To     string
}

func (CaseStatusChanged) Type() string { return TypeCaseStatusChanged }
func (e CaseStatusChanged) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"from", e.From},
		{"to", e.To},
	}
}
func (CaseStatusChanged) isEvent() {}

type PlayerDeposited struct {
	CaseID      uint64
	Player      string
	Amount      uint64
	PlayerCount uint64
}

func (PlayerDeposited) Type() string { return TypePlayerDeposited }
func (e PlayerDeposited) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"player", e.Player},
		{"amount", u64(e.Amount)},
		{"playerCount", u64(e.PlayerCount)},
	}
}
func (PlayerDeposited) isEvent() {}

type SolutionSubmitted struct {
	CaseID      uint64
	Player      string
	SolverCount uint64
}

func (SolutionSubmitted) Type() string { return TypeSolutionSubmitted }
func (e SolutionSubmitted) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"player", e.Player},
		{"solverCount", u64(e.SolverCount)},
	}
}
func (SolutionSubmitted) isEvent() {}

type ExtraAttemptPurchased struct {
	CaseID   uint64
	Player   string
	Amount   uint64
	Attempts uint64
}

func (ExtraAttemptPurchased) Type() string { return TypeExtraAttemptPurchased }
func (e ExtraAttemptPurchased) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"player", e.Player},
		{"amount", u64(e.Amount)},
		{"attempts", u64(e.Attempts)},
	}
}
func (ExtraAttemptPurchased) isEvent() {}

type SolverPaid struct {
	CaseID uint64
	Solver string
	Amount uint64
}

func (SolverPaid) Type() string { return TypeSolverPaid }
func (e SolverPaid) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"solver", e.Solver},
		{"amount", u64(e.Amount)},
	}
}
func (SolverPaid) isEvent() {}

type CaseEnded struct {
	CaseID         uint64
	Solvers        []string
	TotalPrize     uint64
	Commission     uint64
	PerSolver      uint64
	Remainder      uint64
	OperatorPayout uint64
	ExtraFees      uint64
}

func (CaseEnded) Type() string { return TypeCaseEnded }
func (e CaseEnded) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"solvers", strings.Join(e.Solvers, ",")},
		{"totalPrize", u64(e.TotalPrize)},
		{"commission", u64(e.Commission)},
		{"perSolver", u64(e.PerSolver)},
		{"remainder", u64(e.Remainder)},
		{"operatorPayout", u64(e.OperatorPayout)},
		{"extraFees", u64(e.ExtraFees)},
	}
}
func (CaseEnded) isEvent() {}

type CaseCreated struct {
	CaseID         uint64
	PreviousCaseID uint64
}

func (CaseCreated) Type() string { return TypeCaseCreated }
func (e CaseCreated) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"previousCaseId", u64(e.PreviousCaseID)},
	}
}
func (CaseCreated) isEvent() {}

type PlayerRefunded struct {
	CaseID uint64
	Player string
	Amount uint64
}

func (PlayerRefunded) Type() string { return TypePlayerRefunded }
func (e PlayerRefunded) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"player", e.Player},
		{"amount", u64(e.Amount)},
	}
}
func (PlayerRefunded) isEvent() {}

type CaseCancelled struct {
	CaseID   uint64
	Refunded uint64
}

func (CaseCancelled) Type() string { return TypeCaseCancelled }
func (e CaseCancelled) Attributes() []Attribute {
	return []Attribute{
		{"caseId", u64(e.CaseID)},
		{"refunded", u64(e.Refunded)},
	}
}
func (CaseCancelled) isEvent() {}

type TokensRecovered struct {
	Denom  string
	To     string
	Amount uint64
}

func (TokensRecovered) Type() string { return TypeTokensRecovered }
func (e TokensRecovered) Attributes() []Attribute {
	return []Attribute{
		{"denom", e.Denom},
		{"to", e.To},
		{"amount", u64(e.Amount)},
	}
}
func (TokensRecovered) isEvent() {}

// Category groups event types into publish channels.
func Category(typ string) string {
	switch typ {
	case TypeCaseActivated, TypeCaseStatusChanged, TypeCaseCreated, TypeCaseCancelled, TypeCaseEnded:
		return "case"
	case TypePlayerDeposited, TypeExtraAttemptPurchased:
		return "deposit"
	case TypeSolutionSubmitted:
		return "solution"
	case TypeSolverPaid, TypePlayerRefunded, TypeTokensRecovered:
		return "payout"
	default:
		return "other"
	}
}
