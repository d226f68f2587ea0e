package codec

import (
	"encoding/json"
	"fmt"
)

// Tx type names.
const (
	TypeAuthRegisterAccount = "auth/register_account"
	TypeBankMint            = "bank/mint"
	TypeBankSend            = "bank/send"

	TypeActivateCase    = "parallax/activate_case"
	TypeDeposit         = "parallax/deposit"
	TypeSubmitSolution  = "parallax/submit_solution"
	TypePayExtraAttempt = "parallax/pay_extra_attempt"
	TypeGameOver        = "parallax/game_over"
	TypeStartNewCase    = "parallax/start_new_case"
	TypeCancelCase      = "parallax/cancel_case"
	TypeRecoverTokens   = "parallax/recover_tokens"
)

// TxEnvelope is the v0 transaction container. CometBFT transactions are
// opaque bytes; ours are JSON.
type TxEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Nonce is a decimal uint64 that must strictly increase per signer.
	// Sig is an Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// DecodeValue unmarshals the envelope payload into v.
func DecodeValue(env TxEnvelope, v any) error {
	if len(env.Value) == 0 {
		return fmt.Errorf("missing tx.value")
	}
	if err := json.Unmarshal(env.Value, v); err != nil {
		return fmt.Errorf("invalid %s value: %w", env.Type, err)
	}
	return nil
}

// ---- Auth ----

type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Bank ----

// BankMintTx is the devnet faucet; only the operator may sign it.
type BankMintTx struct {
	To     string `json:"to"`
	Denom  string `json:"denom,omitempty"` // default: params.denom
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Denom  string `json:"denom,omitempty"`
	Amount uint64 `json:"amount"`
}

// ---- Parallax ----

type ActivateCaseTx struct {
	Caller       string `json:"caller"`
	CrimeInfoRef string `json:"crimeInfoRef"`
}

type DepositTx struct {
	Player string `json:"player"`
}

type SubmitSolutionTx struct {
	Caller string `json:"caller"`
	Player string `json:"player"`
}

type PayExtraAttemptTx struct {
	Player string `json:"player"`
}

// OperatorTx carries the operator-only calls without arguments: game_over,
// start_new_case and cancel_case.
type OperatorTx struct {
	Caller string `json:"caller"`
}

type RecoverTokensTx struct {
	Caller string `json:"caller"`
	Denom  string `json:"denom"`
}
