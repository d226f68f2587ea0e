package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"github.com/polluterofminds/parallax-contract/internal/ledger"
	"github.com/polluterofminds/parallax-contract/internal/state"
)

// Query serves read-only JSON views of the ledger:
//
//	/params
//	/cases
//	/case/current
//	/case/<id>
//	/case/<id>/status
//	/case/<id>/players
//	/case/<id>/solvers
//	/case/<id>/deposited/<addr>
//	/case/<id>/settlement
//	/account/<addr>[/<denom>]
//	/escrow/<denom>
func (a *ParallaxApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, err := a.query(strings.TrimSpace(req.Path))
	if err != nil {
		codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
		return &abci.QueryResponse{Code: code, Codespace: codespace, Log: logMsg, Height: a.st.Height}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return &abci.QueryResponse{Code: 1, Log: "encode response: " + err.Error(), Height: a.st.Height}, nil
	}
	return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
}

func (a *ParallaxApp) query(path string) (any, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	l := a.ledger

	switch {
	case path == "/params":
		return struct {
			Operator string `json:"operator"`
			state.Params
		}{l.Operator(), l.Params()}, nil

	case path == "/cases":
		return map[string]any{"currentCaseId": l.CurrentCaseID(), "caseIds": l.CaseIDs()}, nil

	case parts[0] == "case" && len(parts) >= 2:
		var id uint64
		if parts[1] == "current" {
			if len(parts) != 2 {
				return nil, ledger.ErrInvalidRequest.Wrapf("unknown query path %q", path)
			}
			id = l.CurrentCaseID()
		} else {
			n, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return nil, ledger.ErrInvalidRequest.Wrapf("invalid case id %q", parts[1])
			}
			id = n
		}
		return a.queryCase(id, parts[2:])

	case parts[0] == "account" && (len(parts) == 2 || len(parts) == 3):
		addr := parts[1]
		denom := l.Params().Denom
		if len(parts) == 3 {
			denom = parts[2]
		}
		return map[string]any{"addr": addr, "denom": denom, "balance": l.Balance(denom, addr)}, nil

	case parts[0] == "escrow" && len(parts) == 2:
		return map[string]any{"denom": parts[1], "balance": l.EscrowBalance(parts[1])}, nil

	default:
		return nil, ledger.ErrInvalidRequest.Wrapf("unknown query path %q", path)
	}
}

func (a *ParallaxApp) queryCase(id uint64, rest []string) (any, error) {
	l := a.ledger
	if len(rest) == 0 {
		c, err := l.Case(id)
		if err != nil {
			return nil, err
		}
		bal, err := l.AccumulatedBalance(id)
		if err != nil {
			return nil, err
		}
		return struct {
			state.Case
			AccumulatedBalance uint64 `json:"accumulatedBalance"`
		}{c, bal}, nil
	}

	switch {
	case rest[0] == "status" && len(rest) == 1:
		s, err := l.CaseStatus(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"caseId": id, "status": s}, nil

	case rest[0] == "players" && len(rest) == 1:
		c, err := l.Case(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"caseId": id, "count": len(c.DepositOrder), "players": c.DepositOrder}, nil

	case rest[0] == "solvers" && len(rest) == 1:
		s, err := l.Solvers(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"caseId": id, "solvers": s}, nil

	case rest[0] == "deposited" && len(rest) == 2:
		ok, err := l.HasDeposited(id, rest[1])
		if err != nil {
			return nil, err
		}
		return map[string]any{"caseId": id, "addr": rest[1], "deposited": ok}, nil

	case rest[0] == "settlement" && len(rest) == 1:
		s, err := l.Settlement(id)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, ledger.ErrInvalidRequest.Wrapf("unknown case query %q", strings.Join(rest, "/"))
	}
}
