package charge

import (
	"errors"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Reason tags the logical billing event behind a charge.
type Reason string

const (
	// ReasonContact is the one-time fee for first contact with a vendor
	// on a campaign. Scoped by campaign ID.
	ReasonContact Reason = "contact"

	// ReasonMessageBlock is the fee for a block of messages beyond the
	// free allowance. Scoped by conversation ID.
	ReasonMessageBlock Reason = "message_block"
)

// Receipt is the durable record of one confirmed charge. Receipts are
// written only after the ledger has confirmed the deduction; an absent
// receipt never implies an absent charge during a crash window, so the
// journal is an audit artifact, not a billing input.
type Receipt struct {
	types.Entity
	ID           id.ChargeID  `json:"id"`
	ActorID      id.ActorID   `json:"actor_id"`
	Scope        id.AnyID     `json:"scope"` // campaign or conversation, by reason
	Reason       Reason       `json:"reason"`
	Amount       types.Tokens `json:"amount"`
	BalanceAfter types.Tokens `json:"balance_after"`
}

// ListOpts filters receipt listings.
type ListOpts struct {
	Reason Reason
	Limit  int
	Offset int
}

// Sentinel errors for coordinator outcomes.
var (
	// ErrChargeInFlight means a charge for the same logical billing event
	// is already outstanding. The trigger is suppressed, not queued.
	ErrChargeInFlight = errors.New("charge: charge already in flight for this event")

	// ErrInvalidAmount means the requested amount is not a positive
	// token quantity.
	ErrInvalidAmount = errors.New("charge: amount must be positive")
)
