// Package app is the CometBFT ABCI application hosting the Parallax ledger.
package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"
	log "github.com/sirupsen/logrus"

	"github.com/polluterofminds/parallax-contract/internal/codec"
	"github.com/polluterofminds/parallax-contract/internal/events"
	"github.com/polluterofminds/parallax-contract/internal/ledger"
	"github.com/polluterofminds/parallax-contract/internal/metrics"
	"github.com/polluterofminds/parallax-contract/internal/state"
	"github.com/polluterofminds/parallax-contract/internal/store"
)

const (
	AppVersion uint64 = 1
)

type ParallaxApp struct {
	*abci.BaseApplication

	mu       sync.Mutex
	st       *state.State
	ledger   *ledger.Ledger
	store    *store.Store
	lastHash []byte

	logger    *log.Entry
	publisher events.Publisher
	metrics   *metrics.Metrics

	// events of the block being finalized, published on Commit
	pending    []events.Record
	pendingEvs []events.Event
}

type Option func(*ParallaxApp)

func WithLogger(logger *log.Entry) Option {
	return func(a *ParallaxApp) { a.logger = logger }
}

func WithPublisher(p events.Publisher) Option {
	return func(a *ParallaxApp) { a.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *ParallaxApp) { a.metrics = m }
}

// New restores the last committed state from s, or starts empty and waits
// for InitChain.
func New(s *store.Store, opts ...Option) (*ParallaxApp, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = state.NewState()
	}
	a := &ParallaxApp{
		BaseApplication: abci.NewBaseApplication(),
		st:              st,
		store:           s,
		lastHash:        st.AppHash(),
		logger:          log.WithField("module", "parallax"),
		publisher:       events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ledger = ledger.New(st, ledger.WithLogger(a.logger.WithField("component", "ledger")))
	a.metrics.SetCurrentCase(st.CurrentCaseID)
	a.metrics.SetHeight(st.Height)
	return a, nil
}

func (a *ParallaxApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "Parallax (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

// CheckTx only does structural validation; auth and nonces need the
// block's state and are checked on delivery.
func (a *ParallaxApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	env, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return checkTxErr(ledger.ErrInvalidRequest.Wrap(err.Error())), nil
	}
	if !knownTxType(env.Type) {
		return checkTxErr(ledger.ErrInvalidRequest.Wrapf("unknown tx type: %s", env.Type)), nil
	}
	if err := requireSignedEnvelope(env); err != nil {
		return checkTxErr(err), nil
	}
	return &abci.CheckTxResponse{Code: 0}, nil
}

func checkTxErr(err error) *abci.CheckTxResponse {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.CheckTxResponse{Code: code, Codespace: codespace, Log: logMsg}
}

// InitChain installs the genesis app state: operator, params, account keys
// and initial balances.
func (a *ParallaxApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) == 0 {
		return nil, fmt.Errorf("missing app_state in genesis (see `parallaxd genesis`)")
	}
	g, err := state.DecodeGenesis(req.AppStateBytes)
	if err != nil {
		return nil, err
	}
	gst, err := state.NewStateFromGenesis(g)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	if err := a.ledger.Update(func(st *state.State) error {
		*st = *gst
		return nil
	}); err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	a.lastHash = a.st.AppHash()
	a.metrics.SetCurrentCase(a.st.CurrentCaseID)

	a.logger.WithFields(log.Fields{
		"chainId":  req.ChainId,
		"operator": g.Operator,
		"denom":    g.Params.Denom,
		"accounts": len(g.Accounts),
	}).Info("genesis applied")
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *ParallaxApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ledger.Update(func(st *state.State) error {
		st.Height = req.Height
		return nil
	}); err != nil {
		return nil, err
	}

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for i, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, i)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()
	a.metrics.SetHeight(req.Height)
	a.metrics.SetCurrentCase(a.st.CurrentCaseID)

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

// Commit persists the block state and then hands its events to the
// publisher. Publishing is best effort; persistence is not.
func (a *ParallaxApp) Commit(ctx context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Save(a.st); err != nil {
		// Halt the node loudly rather than diverge from what we reported.
		return nil, err
	}

	recs, evs := a.pending, a.pendingEvs
	a.pending, a.pendingEvs = nil, nil
	a.metrics.ObserveEvents(evs)
	if len(recs) > 0 {
		if err := a.publisher.Publish(ctx, recs); err != nil {
			a.logger.WithError(err).WithField("height", a.st.Height).Warn("failed to publish ledger events")
		}
	}
	return &abci.CommitResponse{}, nil
}

func knownTxType(typ string) bool {
	switch typ {
	case codec.TypeAuthRegisterAccount, codec.TypeBankMint, codec.TypeBankSend,
		codec.TypeActivateCase, codec.TypeDeposit, codec.TypeSubmitSolution, codec.TypePayExtraAttempt,
		codec.TypeGameOver, codec.TypeStartNewCase, codec.TypeCancelCase, codec.TypeRecoverTokens:
		return true
	}
	return false
}

// authenticate checks the envelope signature for principal and consumes the
// nonce in its own commit, before the operation runs. A consumed nonce stays
// consumed even if the operation then fails, so a rejected op still changes
// NonceMax (and the app hash) while leaving cases and balances untouched.
func (a *ParallaxApp) authenticate(env codec.TxEnvelope, principal string) error {
	return a.ledger.Update(func(st *state.State) error {
		if err := requireAccountAuth(st, env, principal); err != nil {
			return err
		}
		return consumeNonce(st, env)
	})
}

func (a *ParallaxApp) deliverTx(txBytes []byte, height int64, txIndex int) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return a.txErr("", ledger.ErrInvalidRequest.Wrap(err.Error()))
	}

	evs, res, err := a.execute(env)
	if err != nil {
		return a.txErr(env.Type, err)
	}
	a.metrics.ObserveTx(env.Type, true)
	if res != nil {
		return res
	}

	out := &abci.ExecTxResult{Code: 0, Events: toABCIEvents(evs)}
	for _, ev := range evs {
		a.pending = append(a.pending, events.NewRecord(height, txIndex, ev))
	}
	a.pendingEvs = append(a.pendingEvs, evs...)
	return out
}

// execute routes a decoded envelope. Ledger operations return events;
// account and bank txs build their own result.
func (a *ParallaxApp) execute(env codec.TxEnvelope) ([]events.Event, *abci.ExecTxResult, error) {
	switch env.Type {
	case codec.TypeAuthRegisterAccount:
		var msg codec.AuthRegisterAccountTx
		if err := codec.DecodeValue(env, &msg); err != nil {
			return nil, nil, ledger.ErrInvalidRequest.Wrap(err.Error())
		}
		err := a.ledger.Update(func(st *state.State) error {
			if err := requireRegisterAccountAuth(st, env, msg); err != nil {
				return err
			}
			if err := consumeNonce(st, env); err != nil {
				return err
			}
			st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, okEvent("AccountRegistered", map[string]string{"account": msg.Account}), nil

	case codec.TypeBankMint:
		var msg codec.BankMintTx
		if err := codec.DecodeValue(env, &msg); err != nil {
			return nil, nil, ledger.ErrInvalidRequest.Wrap(err.Error())
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, nil, ledger.ErrInvalidRequest.Wrap("missing to/amount")
		}
		if msg.To == state.EscrowAccount {
			return nil, nil, ledger.ErrInvalidRequest.Wrap("cannot mint into the escrow account")
		}
		if err := a.authenticate(env, a.ledger.Operator()); err != nil {
			return nil, nil, err
		}
		denom := a.denomOrDefault(msg.Denom)
		if err := a.ledger.Update(func(st *state.State) error {
			if err := st.Credit(denom, msg.To, msg.Amount); err != nil {
				return ledger.ErrInvalidRequest.Wrap(err.Error())
			}
			return nil
		}); err != nil {
			return nil, nil, err
		}
		return nil, okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"denom":  denom,
			"amount": strconv.FormatUint(msg.Amount, 10),
		}), nil

	case codec.TypeBankSend:
		var msg codec.BankSendTx
		if err := codec.DecodeValue(env, &msg); err != nil {
			return nil, nil, ledger.ErrInvalidRequest.Wrap(err.Error())
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return nil, nil, ledger.ErrInvalidRequest.Wrap("missing from/to/amount")
		}
		if msg.To == state.EscrowAccount {
			return nil, nil, ledger.ErrInvalidRequest.Wrap("use parallax txs to pay into escrow")
		}
		if msg.From == state.EscrowAccount {
			return nil, nil, ledger.ErrUnauthorized.Wrap("escrow funds move only through parallax txs")
		}
		if err := a.authenticate(env, msg.From); err != nil {
			return nil, nil, err
		}
		denom := a.denomOrDefault(msg.Denom)
		if err := a.ledger.Update(func(st *state.State) error {
			if err := st.Debit(denom, msg.From, msg.Amount); err != nil {
				return ledger.ErrTransferFailure.Wrap(err.Error())
			}
			if err := st.Credit(denom, msg.To, msg.Amount); err != nil {
				return ledger.ErrTransferFailure.Wrap(err.Error())
			}
			return nil
		}); err != nil {
			return nil, nil, err
		}
		return nil, okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"denom":  denom,
			"amount": strconv.FormatUint(msg.Amount, 10),
		}), nil

	case codec.TypeActivateCase:
		var msg codec.ActivateCaseTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Caller }); err != nil {
			return nil, nil, err
		}
		evs, err := a.ledger.ActivateCase(msg.Caller, msg.CrimeInfoRef)
		return evs, nil, err

	case codec.TypeDeposit:
		var msg codec.DepositTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Player }); err != nil {
			return nil, nil, err
		}
		evs, err := a.ledger.DepositToPlay(msg.Player)
		return evs, nil, err

	case codec.TypeSubmitSolution:
		var msg codec.SubmitSolutionTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Caller }); err != nil {
			return nil, nil, err
		}
		evs, err := a.ledger.SubmitSolution(msg.Caller, msg.Player)
		return evs, nil, err

	case codec.TypePayExtraAttempt:
		var msg codec.PayExtraAttemptTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Player }); err != nil {
			return nil, nil, err
		}
		evs, err := a.ledger.PayForExtraSolutionAttempt(msg.Player)
		return evs, nil, err

	case codec.TypeGameOver, codec.TypeStartNewCase, codec.TypeCancelCase:
		var msg codec.OperatorTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Caller }); err != nil {
			return nil, nil, err
		}
		var evs []events.Event
		var err error
		switch env.Type {
		case codec.TypeGameOver:
			evs, err = a.ledger.GameOver(msg.Caller)
		case codec.TypeStartNewCase:
			evs, err = a.ledger.StartNewCase(msg.Caller)
		default:
			evs, err = a.ledger.CancelCase(msg.Caller)
		}
		return evs, nil, err

	case codec.TypeRecoverTokens:
		var msg codec.RecoverTokensTx
		if err := a.decodeAndAuth(env, &msg, func() string { return msg.Caller }); err != nil {
			return nil, nil, err
		}
		evs, err := a.ledger.RecoverTokens(msg.Caller, msg.Denom)
		return evs, nil, err

	default:
		return nil, nil, ledger.ErrInvalidRequest.Wrapf("unknown tx type: %s", env.Type)
	}
}

// decodeAndAuth decodes the tx value into msg and authenticates the
// principal named by it.
func (a *ParallaxApp) decodeAndAuth(env codec.TxEnvelope, msg any, principal func() string) error {
	if err := codec.DecodeValue(env, msg); err != nil {
		return ledger.ErrInvalidRequest.Wrap(err.Error())
	}
	return a.authenticate(env, principal())
}

func (a *ParallaxApp) denomOrDefault(denom string) string {
	if denom != "" {
		return denom
	}
	return a.ledger.Params().Denom
}

func (a *ParallaxApp) txErr(typ string, err error) *abci.ExecTxResult {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	if typ != "" {
		a.metrics.ObserveTx(typ, false)
	}
	a.logger.WithFields(log.Fields{"type": typ, "code": code}).Debug(logMsg)
	return &abci.ExecTxResult{Code: code, Codespace: codespace, Log: logMsg}
}

func toABCIEvents(evs []events.Event) []abci.Event {
	out := make([]abci.Event, 0, len(evs))
	for _, ev := range evs {
		e := abci.Event{Type: ev.Type()}
		for _, attr := range ev.Attributes() {
			e.Attributes = append(e.Attributes, abci.EventAttribute{Key: attr.Key, Value: attr.Value, Index: true})
		}
		out = append(out, e)
	}
	return out
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
