package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

// ComputeSettlement splits the entry fees of a case:
//
//	totalPrize     = depositors * entryFee
//	commission     = totalPrize * commissionPercent / 100   (truncated)
//	perSolver      = (totalPrize - commission) / solvers    (truncated)
//	operatorPayout = commission + remainder of the division
//
// perSolver*solvers + operatorPayout == totalPrize always holds.
func ComputeSettlement(depositors, solvers, entryFee uint64, commissionPercent uint32) (state.Settlement, error) {
	if solvers == 0 {
		return state.Settlement{}, ErrMissingPrerequisite.Wrap("no solution submitted")
	}
	if solvers > depositors {
		return state.Settlement{}, ErrInvalidRequest.Wrapf("%d solvers exceed %d depositors", solvers, depositors)
	}
	if commissionPercent > 100 {
		return state.Settlement{}, ErrInvalidRequest.Wrapf("commission %d%% exceeds 100%%", commissionPercent)
	}

	total := sdkmath.NewIntFromUint64(depositors).Mul(sdkmath.NewIntFromUint64(entryFee))
	if !total.IsUint64() {
		return state.Settlement{}, ErrInvalidRequest.Wrap("total prize overflows uint64")
	}
	commission := total.MulRaw(int64(commissionPercent)).QuoRaw(100)
	pool := total.Sub(commission)

	per, rem, err := SplitPool(pool.Uint64(), solvers)
	if err != nil {
		return state.Settlement{}, err
	}

	return state.Settlement{
		TotalPrize:     total.Uint64(),
		Commission:     commission.Uint64(),
		SolverPool:     pool.Uint64(),
		PerSolver:      per,
		Remainder:      rem,
		OperatorPayout: commission.Uint64() + rem,
	}, nil
}

// SplitPool divides a solver pool evenly; the remainder belongs to the operator.
func SplitPool(pool, solvers uint64) (perSolver, remainder uint64, err error) {
	if solvers == 0 {
		return 0, 0, ErrMissingPrerequisite.Wrap("no solution submitted")
	}
	p := sdkmath.NewIntFromUint64(pool)
	n := sdkmath.NewIntFromUint64(solvers)
	per := p.Quo(n)
	return per.Uint64(), p.Sub(per.Mul(n)).Uint64(), nil
}
