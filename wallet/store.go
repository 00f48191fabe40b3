package wallet

import (
	"context"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Store is the persistence contract for token accounts.
type Store interface {
	// GetAccount retrieves an account, ErrAccountNotFound if absent.
	GetAccount(ctx context.Context, actorID id.ActorID) (*Account, error)

	// CreateAccount stores a new account. Creating an existing account
	// is an error.
	CreateAccount(ctx context.Context, a *Account) error

	// DeductTokens atomically subtracts amount if the balance covers it,
	// returning the new balance. Returns ErrInsufficientTokens without
	// mutating anything when it does not. The check and the subtraction
	// must be one atomic step per account.
	DeductTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error)

	// CreditTokens adds amount to the balance and returns the new balance.
	CreditTokens(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error)
}
