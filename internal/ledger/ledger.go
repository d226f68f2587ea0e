// Package ledger implements the Parallax case ledger: the case lifecycle,
// deposit and solver bookkeeping, settlement and refunds.
//
// Every operation runs against a staged copy of the state and is committed
// only if it completes and the ledger invariants still hold, so a failed
// transfer halfway through a payout leaves no trace.
package ledger

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/polluterofminds/parallax-contract/internal/events"
	"github.com/polluterofminds/parallax-contract/internal/state"
)

type Ledger struct {
	mu     sync.Mutex
	st     *state.State
	banks  BankProvider
	logger *log.Entry
}

type Option func(*Ledger)

// WithBankProvider replaces the in-state bank, e.g. with a failing one in tests.
func WithBankProvider(p BankProvider) Option {
	return func(l *Ledger) { l.banks = p }
}

func WithLogger(logger *log.Entry) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(st *state.State, opts ...Option) *Ledger {
	if st == nil {
		panic("ledger: state is nil")
	}
	l := &Ledger{
		st:     st,
		banks:  NewStateBank,
		logger: log.WithField("module", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update runs fn on a staged copy of the state and commits it if fn succeeds.
// It is the only write path; the operations below are built on it.
func (l *Ledger) Update(fn func(st *state.State) error) error {
	_, err := l.apply("update", func(st *state.State) ([]events.Event, error) {
		return nil, fn(st)
	})
	return err
}

func (l *Ledger) apply(op string, fn func(st *state.State) ([]events.Event, error)) ([]events.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged, err := l.st.Clone()
	if err != nil {
		return nil, ErrInvariantBroken.Wrapf("stage %s: %v", op, err)
	}
	evs, err := fn(staged)
	if err != nil {
		return nil, err
	}
	if err := CheckInvariants(staged); err != nil {
		l.logger.WithError(err).WithField("op", op).Error("rejecting operation that breaks ledger invariants")
		return nil, ErrInvariantBroken.Wrapf("%s: %v", op, err)
	}
	*l.st = *staged
	return evs, nil
}

func (l *Ledger) settlementBank(st *state.State) Bank {
	return l.banks(st, st.Params.Denom)
}

func requireOperator(st *state.State, caller string) error {
	if st.Operator == "" || caller != st.Operator {
		return ErrUnauthorized.Wrapf("%q is not the operator", caller)
	}
	return nil
}

// currentCaseIn returns the current case if it is in the wanted phase.
func currentCaseIn(st *state.State, want state.CaseStatus) (*state.Case, error) {
	c := st.CurrentCase()
	if c == nil {
		return nil, ErrCaseNotFound.Wrapf("case %d not found", st.CurrentCaseID)
	}
	if c.Status != want {
		return nil, ErrInvalidPhase.Wrapf("case %d is %s, want %s", c.ID, c.Status, want)
	}
	return c, nil
}

func statusChanged(c *state.Case, from state.CaseStatus) events.Event {
	return events.CaseStatusChanged{CaseID: c.ID, From: from.String(), To: c.Status.String()}
}

// ActivateCase stores the crime-info reference and opens the pending case for
// deposits. Setting the reference and activating are one step.
func (l *Ledger) ActivateCase(caller, ref string) ([]events.Event, error) {
	evs, err := l.apply("activate_case", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		c, err := currentCaseIn(st, state.CasePending)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(ref) == "" {
			return nil, ErrEmptyInput.Wrap("crime info reference cannot be empty")
		}

		c.CrimeInfoRef = ref
		c.Status = state.CaseActive
		return []events.Event{
			events.CaseActivated{CaseID: c.ID, CrimeInfoRef: ref},
			statusChanged(c, state.CasePending),
		}, nil
	})
	if err == nil {
		l.logger.WithField("ref", ref).Info("case activated")
	}
	return evs, err
}

// DepositToPlay escrows the entry fee from caller and enrols them in the
// active case.
func (l *Ledger) DepositToPlay(caller string) ([]events.Event, error) {
	return l.apply("deposit", func(st *state.State) ([]events.Event, error) {
		if caller == "" {
			return nil, ErrInvalidRequest.Wrap("missing player")
		}
		if caller == state.EscrowAccount {
			return nil, ErrInvalidRequest.Wrap("escrow account cannot play")
		}
		c, err := currentCaseIn(st, state.CaseActive)
		if err != nil {
			return nil, err
		}
		if c.HasDeposited(caller) {
			return nil, ErrDuplicateAction.Wrapf("%q has already deposited for case %d", caller, c.ID)
		}

		fee := st.Params.EntryFee
		if err := l.settlementBank(st).TransferIn(caller, fee); err != nil {
			return nil, ErrTransferFailure.Wrapf("entry fee from %q: %v", caller, err)
		}
		c.Deposited[caller] = true
		c.DepositOrder = append(c.DepositOrder, caller)

		return []events.Event{events.PlayerDeposited{
			CaseID:      c.ID,
			Player:      caller,
			Amount:      fee,
			PlayerCount: uint64(len(c.DepositOrder)),
		}}, nil
	})
}

// SubmitSolution records player as a solver of the active case. Correctness
// of the solution is decided by the operator off-chain.
func (l *Ledger) SubmitSolution(caller, player string) ([]events.Event, error) {
	return l.apply("submit_solution", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		c, err := currentCaseIn(st, state.CaseActive)
		if err != nil {
			return nil, err
		}
		if player == "" {
			return nil, ErrInvalidRequest.Wrap("missing player")
		}
		if !c.HasDeposited(player) {
			return nil, ErrMissingPrerequisite.Wrapf("%q has not deposited for case %d", player, c.ID)
		}
		if c.IsSolver(player) {
			return nil, ErrDuplicateAction.Wrapf("%q already submitted a solution for case %d", player, c.ID)
		}

		c.Solvers = append(c.Solvers, player)
		return []events.Event{events.SolutionSubmitted{
			CaseID:      c.ID,
			Player:      player,
			SolverCount: uint64(len(c.Solvers)),
		}}, nil
	})
}

// PayForExtraSolutionAttempt charges the extra-attempt fee. It only counts the
// purchase; solving is unaffected.
func (l *Ledger) PayForExtraSolutionAttempt(caller string) ([]events.Event, error) {
	return l.apply("pay_extra_attempt", func(st *state.State) ([]events.Event, error) {
		c, err := currentCaseIn(st, state.CaseActive)
		if err != nil {
			return nil, err
		}
		if !c.HasDeposited(caller) {
			return nil, ErrMissingPrerequisite.Wrapf("%q has not deposited for case %d", caller, c.ID)
		}

		attempts, err := addUint64Checked(c.ExtraAttempts[caller], 1, "extra attempts")
		if err != nil {
			return nil, ErrInvalidRequest.Wrap(err.Error())
		}
		fee := st.Params.ExtraSolutionFee
		if err := l.settlementBank(st).TransferIn(caller, fee); err != nil {
			return nil, ErrTransferFailure.Wrapf("extra attempt fee from %q: %v", caller, err)
		}
		c.ExtraAttempts[caller] = attempts

		return []events.Event{events.ExtraAttemptPurchased{
			CaseID:   c.ID,
			Player:   caller,
			Amount:   fee,
			Attempts: attempts,
		}}, nil
	})
}

// GameOver settles the active case: each solver gets an equal share of the
// pool after commission, the operator gets the commission, the division
// remainder and any extra-attempt fees. The current case id is not advanced.
func (l *Ledger) GameOver(caller string) ([]events.Event, error) {
	evs, err := l.apply("game_over", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		c, err := currentCaseIn(st, state.CaseActive)
		if err != nil {
			return nil, err
		}
		if len(c.Solvers) == 0 {
			return nil, ErrMissingPrerequisite.Wrapf("no solution submitted for case %d", c.ID)
		}

		s, err := ComputeSettlement(uint64(len(c.DepositOrder)), uint64(len(c.Solvers)), st.Params.EntryFee, st.Params.CommissionPercent)
		if err != nil {
			return nil, err
		}
		attempts, err := c.TotalExtraAttempts()
		if err != nil {
			return nil, ErrInvalidRequest.Wrap(err.Error())
		}
		if s.ExtraFees, err = mulUint64Checked(attempts, st.Params.ExtraSolutionFee, "extra fees"); err != nil {
			return nil, ErrInvalidRequest.Wrap(err.Error())
		}
		toOperator, err := addUint64Checked(s.OperatorPayout, s.ExtraFees, "operator payout")
		if err != nil {
			return nil, ErrInvalidRequest.Wrap(err.Error())
		}

		bank := l.settlementBank(st)
		out := make([]events.Event, 0, len(c.Solvers)+2)
		for _, solver := range c.Solvers {
			if err := bank.TransferOut(solver, s.PerSolver); err != nil {
				return nil, ErrTransferFailure.Wrapf("payout to %q: %v", solver, err)
			}
			out = append(out, events.SolverPaid{CaseID: c.ID, Solver: solver, Amount: s.PerSolver})
		}
		if err := bank.TransferOut(st.Operator, toOperator); err != nil {
			return nil, ErrTransferFailure.Wrapf("operator payout: %v", err)
		}

		c.Settlement = &s
		c.Status = state.CaseCompleted
		out = append(out,
			events.CaseEnded{
				CaseID:         c.ID,
				Solvers:        append([]string(nil), c.Solvers...),
				TotalPrize:     s.TotalPrize,
				Commission:     s.Commission,
				PerSolver:      s.PerSolver,
				Remainder:      s.Remainder,
				OperatorPayout: s.OperatorPayout,
				ExtraFees:      s.ExtraFees,
			},
			statusChanged(c, state.CaseActive),
		)
		return out, nil
	})
	if err == nil {
		l.logger.WithField("events", len(evs)).Info("case settled")
	}
	return evs, err
}

// StartNewCase opens the next pending case once the current one is finished
// or cancelled.
func (l *Ledger) StartNewCase(caller string) ([]events.Event, error) {
	return l.apply("start_new_case", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		cur := st.CurrentCase()
		if cur == nil {
			return nil, ErrCaseNotFound.Wrapf("case %d not found", st.CurrentCaseID)
		}
		if !cur.Status.Terminal() {
			return nil, ErrInvalidPhase.Wrapf("case %d must be finished or cancelled first", cur.ID)
		}
		next, err := addUint64Checked(st.CurrentCaseID, 1, "case id")
		if err != nil {
			return nil, ErrInvalidRequest.Wrap(err.Error())
		}
		if st.Cases[next] != nil {
			return nil, ErrInvariantBroken.Wrapf("case %d already exists", next)
		}

		st.Cases[next] = state.NewCase(next)
		st.CurrentCaseID = next
		return []events.Event{events.CaseCreated{CaseID: next, PreviousCaseID: cur.ID}}, nil
	})
}

// CancelCase refunds every depositor of the pending case, in deposit order,
// and marks it cancelled.
func (l *Ledger) CancelCase(caller string) ([]events.Event, error) {
	evs, err := l.apply("cancel_case", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		c := st.CurrentCase()
		if c == nil {
			return nil, ErrCaseNotFound.Wrapf("case %d not found", st.CurrentCaseID)
		}
		if c.Status != state.CasePending {
			return nil, ErrInvalidPhase.Wrapf("can only cancel pending cases; case %d is %s", c.ID, c.Status)
		}

		bank := l.settlementBank(st)
		fee := st.Params.EntryFee
		out := make([]events.Event, 0, len(c.DepositOrder)+2)
		for _, p := range c.DepositOrder {
			if err := bank.TransferOut(p, fee); err != nil {
				return nil, ErrTransferFailure.Wrapf("refund to %q: %v", p, err)
			}
			out = append(out, events.PlayerRefunded{CaseID: c.ID, Player: p, Amount: fee})
		}

		refunded := uint64(len(c.DepositOrder))
		c.Deposited = map[string]bool{}
		c.DepositOrder = nil
		c.Solvers = nil
		c.ExtraAttempts = map[string]uint64{}
		c.Status = state.CaseCancelled

		out = append(out,
			events.CaseCancelled{CaseID: c.ID, Refunded: refunded},
			statusChanged(c, state.CasePending),
		)
		return out, nil
	})
	if err == nil {
		l.logger.Info("case cancelled")
	}
	return evs, err
}

// RecoverTokens sends the escrow's whole balance of denom to the operator. For
// the settlement denom this includes fees owed to an open case.
func (l *Ledger) RecoverTokens(caller, denom string) ([]events.Event, error) {
	evs, err := l.apply("recover_tokens", func(st *state.State) ([]events.Event, error) {
		if err := requireOperator(st, caller); err != nil {
			return nil, err
		}
		if strings.TrimSpace(denom) == "" {
			return nil, ErrEmptyInput.Wrap("denom cannot be empty")
		}

		bank := l.banks(st, denom)
		amount := bank.BalanceOf(state.EscrowAccount)
		if err := bank.TransferOut(st.Operator, amount); err != nil {
			return nil, ErrTransferFailure.Wrapf("recover %s: %v", denom, err)
		}
		return []events.Event{events.TokensRecovered{Denom: denom, To: st.Operator, Amount: amount}}, nil
	})
	if err == nil {
		l.logger.WithField("denom", denom).Warn("escrow balance recovered by operator")
	}
	return evs, err
}
