// Package charge executes token charges against the external ledger with
// at-most-one-charge-in-flight guarantees per logical billing event.
//
// A billing event is identified by (actor, scope, reason): the same actor
// crossing into the same paid block, or paying the same campaign's contact
// fee. While one charge for an event is outstanding, further triggers are
// rejected rather than queued. Counters are never advanced here; the caller
// commits them only after Charge returns a receipt.
package charge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
	"github.com/xraph/tollgate/wallet"
)

// eventKey identifies one logical billing event.
type eventKey struct {
	actor  string
	scope  string
	reason Reason
}

// Coordinator bills logical events against the external ledger exactly once.
type Coordinator struct {
	ledger wallet.Ledger
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[eventKey]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a Coordinator billing against the given ledger
// and journaling receipts into the given store.
func NewCoordinator(ledger wallet.Ledger, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:   ledger,
		store:    store,
		logger:   slog.Default(),
		inFlight: make(map[eventKey]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Charge executes one charge for the billing event (actorID, scope, reason).
//
// Outcomes:
//   - success: the deduction is confirmed; a receipt with the post-charge
//     balance is journaled and returned. The caller may now commit counters.
//   - wallet.ErrInsufficientTokens: nothing was deducted or committed; the
//     action must be blocked.
//   - wallet.ErrLedgerUnavailable (wrapping the transport error): the charge
//     is unconfirmed; nothing was committed and retrying the event is safe.
//   - ErrChargeInFlight: another charge for this event is outstanding.
//
// The ledger call is detached from the caller's cancellation: if the caller
// goes away mid-charge, the deduction still resolves to a definite outcome
// instead of being abandoned mid-write.
func (c *Coordinator) Charge(ctx context.Context, actorID id.ActorID, scope id.AnyID, amount types.Tokens, reason Reason) (*Receipt, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}

	key := eventKey{actor: actorID.String(), scope: scope.String(), reason: reason}
	if !c.acquire(key) {
		return nil, fmt.Errorf("%w: actor=%s scope=%s reason=%s", ErrChargeInFlight, actorID, scope, reason)
	}
	defer c.release(key)

	// Detached so the deduction resolves even if the caller cancels.
	dctx := context.WithoutCancel(ctx)

	newBalance, err := c.ledger.Deduct(dctx, actorID, amount)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientTokens) {
			c.logger.Info("charge rejected: insufficient tokens",
				"actor", actorID.String(),
				"scope", scope.String(),
				"reason", string(reason),
				"amount", amount.Int64(),
			)
			return nil, err
		}

		c.logger.Warn("charge unconfirmed: ledger error",
			"actor", actorID.String(),
			"scope", scope.String(),
			"reason", string(reason),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", wallet.ErrLedgerUnavailable, err)
	}

	r := &Receipt{
		Entity:       types.NewEntity(),
		ID:           id.NewChargeID(),
		ActorID:      actorID,
		Scope:        scope,
		Reason:       reason,
		Amount:       amount,
		BalanceAfter: newBalance,
	}

	// The deduction already happened; a journal failure must not undo it.
	if err := c.store.AppendCharge(dctx, r); err != nil {
		c.logger.Error("charge confirmed but receipt not journaled",
			"charge", r.ID.String(),
			"actor", actorID.String(),
			"error", err,
		)
	}

	c.logger.Debug("charge confirmed",
		"charge", r.ID.String(),
		"actor", actorID.String(),
		"reason", string(reason),
		"amount", amount.Int64(),
		"balance_after", newBalance.Int64(),
	)

	return r, nil
}

// InFlight reports whether a charge for the event is currently outstanding.
func (c *Coordinator) InFlight(actorID id.ActorID, scope id.AnyID, reason Reason) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inFlight[eventKey{actor: actorID.String(), scope: scope.String(), reason: reason}]
	return ok
}

// Receipts returns an actor's charge history, newest first.
func (c *Coordinator) Receipts(ctx context.Context, actorID id.ActorID, opts ListOpts) ([]*Receipt, error) {
	return c.store.ListCharges(ctx, actorID, opts)
}

func (c *Coordinator) acquire(key eventKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, taken := c.inFlight[key]; taken {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key eventKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, key)
}
