// Package wallet defines the token balance contract the charge coordinator
// bills against, plus a store-backed reference implementation.
//
// The engine itself never mutates balances: it only asks the Ledger to
// deduct and reads the post-charge balance the Ledger returns. Deployments
// that keep balances in an external billing system implement Ledger
// directly; the reference Service exists for tests and single-binary
// deployments.
package wallet

import (
	"errors"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// DefaultOpeningBalance is the token grant a new account starts with.
const DefaultOpeningBalance = types.Tokens(200)

// Account holds one actor's token balance.
type Account struct {
	types.Entity
	ActorID id.ActorID   `json:"actor_id"`
	Balance types.Tokens `json:"balance"`
}

// Sentinel errors for ledger outcomes.
var (
	// ErrInsufficientTokens means the balance does not cover the amount.
	// The caller must not commit any counter and should route the actor to
	// a top-up flow.
	ErrInsufficientTokens = errors.New("wallet: insufficient tokens")

	// ErrLedgerUnavailable means the ledger could not confirm the charge
	// (network, timeout). The charge is not confirmed; retrying the same
	// billing event is safe because nothing was committed.
	ErrLedgerUnavailable = errors.New("wallet: ledger unavailable")

	// ErrAccountNotFound means no account exists for the actor.
	ErrAccountNotFound = errors.New("wallet: account not found")
)
