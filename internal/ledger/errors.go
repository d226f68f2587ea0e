package ledger

import errorsmod "cosmossdk.io/errors"

// Codespace is the ABCI codespace of ledger errors.
const Codespace = "parallax"

// Ledger sentinel errors. Every one aborts the operation without side effects.
var (
	ErrInvalidRequest      = errorsmod.Register(Codespace, 1, "invalid request")
	ErrUnauthorized        = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrInvalidPhase        = errorsmod.Register(Codespace, 3, "invalid case phase")
	ErrDuplicateAction     = errorsmod.Register(Codespace, 4, "duplicate action")
	ErrMissingPrerequisite = errorsmod.Register(Codespace, 5, "missing prerequisite")
	ErrEmptyInput          = errorsmod.Register(Codespace, 6, "empty input")
	ErrTransferFailure     = errorsmod.Register(Codespace, 7, "transfer failed")
	ErrCaseNotFound        = errorsmod.Register(Codespace, 8, "case not found")
	ErrInvariantBroken     = errorsmod.Register(Codespace, 9, "ledger invariant broken")
)
