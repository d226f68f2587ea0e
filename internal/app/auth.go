package app

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"strconv"

	"github.com/polluterofminds/parallax-contract/internal/codec"
	"github.com/polluterofminds/parallax-contract/internal/ledger"
	"github.com/polluterofminds/parallax-contract/internal/state"
)

const txAuthDomainV0 = "parallax/tx/v0"

func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return ledger.ErrUnauthorized.Wrap("missing tx.nonce")
	}
	if env.Signer == "" {
		return ledger.ErrUnauthorized.Wrap("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return ledger.ErrUnauthorized.Wrap("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return ledger.ErrUnauthorized.Wrapf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

func verifyEnvelope(pub []byte, env codec.TxEnvelope) error {
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return ledger.ErrUnauthorized.Wrap("invalid signature")
	}
	return nil
}

// requireRegisterAccountAuth checks a self-signed key registration. A
// registered account may only re-submit the same key. The escrow account is
// never keyed.
func requireRegisterAccountAuth(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return ledger.ErrInvalidRequest.Wrap("missing account")
	}
	if msg.Account == state.EscrowAccount {
		return ledger.ErrUnauthorized.Wrap("escrow account cannot be registered")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return ledger.ErrInvalidRequest.Wrapf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return ledger.ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	if cur := st.AccountKeys[msg.Account]; len(cur) != 0 && !bytes.Equal(cur, msg.PubKey) {
		return ledger.ErrUnauthorized.Wrapf("account %q already has a different pubKey", msg.Account)
	}
	return verifyEnvelope(msg.PubKey, env)
}

// requireAccountAuth checks that env is signed by account with its
// registered key.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if account == "" {
		return ledger.ErrInvalidRequest.Wrap("missing account")
	}
	if account == state.EscrowAccount {
		return ledger.ErrUnauthorized.Wrap("escrow account cannot sign txs")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return ledger.ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return ledger.ErrUnauthorized.Wrapf("account %q missing pubKey (auth/register_account required)", account)
	}
	return verifyEnvelope(pub, env)
}

// consumeNonce enforces strictly increasing per-signer nonces.
func consumeNonce(st *state.State, env codec.TxEnvelope) error {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return ledger.ErrUnauthorized.Wrapf("invalid tx.nonce %q: must be a decimal uint64", env.Nonce)
	}
	if last, ok := st.NonceMax[env.Signer]; ok && n <= last {
		return ledger.ErrUnauthorized.Wrapf("replayed tx.nonce: got %d, last accepted %d", n, last)
	}
	st.NonceMax[env.Signer] = n
	return nil
}
