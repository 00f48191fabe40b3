package wallet

import (
	"context"
	"fmt"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Ledger is the external token ledger contract the charge coordinator
// consumes. Implementations may be slow or failing and offer no
// transactional coupling with the engine's local counters; the coordinator
// treats every call as unconfirmed until it returns.
type Ledger interface {
	// Balance returns the actor's current token balance.
	Balance(ctx context.Context, actorID id.ActorID) (types.Tokens, error)

	// Deduct subtracts amount from the actor's balance and returns the new
	// balance. Returns ErrInsufficientTokens when the balance does not
	// cover amount; any other error means the deduction is unconfirmed.
	Deduct(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error)
}

// Service is the store-backed reference Ledger.
type Service struct {
	store          Store
	openingBalance types.Tokens
}

var _ Ledger = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOpeningBalance sets the token grant for newly opened accounts.
func WithOpeningBalance(amount types.Tokens) ServiceOption {
	return func(s *Service) { s.openingBalance = amount }
}

// NewService returns a Ledger backed by the given Store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:          store,
		openingBalance: DefaultOpeningBalance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates an account for the actor with the opening balance.
// Idempotent: an existing account is returned unchanged.
func (s *Service) Open(ctx context.Context, actorID id.ActorID) (*Account, error) {
	if existing, err := s.store.GetAccount(ctx, actorID); err == nil {
		return existing, nil
	}

	a := &Account{
		Entity:  types.NewEntity(),
		ActorID: actorID,
		Balance: s.openingBalance,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("wallet: open account: %w", err)
	}
	return a, nil
}

// Balance implements Ledger.
func (s *Service) Balance(ctx context.Context, actorID id.ActorID) (types.Tokens, error) {
	a, err := s.store.GetAccount(ctx, actorID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Deduct implements Ledger. The conditional subtraction is delegated to
// the store, which performs it atomically per account.
func (s *Service) Deduct(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("wallet: deduct amount must be positive, got %s", amount)
	}
	return s.store.DeductTokens(ctx, actorID, amount)
}

// Credit adds tokens to the actor's balance (top-up flow).
func (s *Service) Credit(ctx context.Context, actorID id.ActorID, amount types.Tokens) (types.Tokens, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("wallet: credit amount must be positive, got %s", amount)
	}
	return s.store.CreditTokens(ctx, actorID, amount)
}
