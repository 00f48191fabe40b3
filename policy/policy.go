// Package policy implements the billing decision function for Tollgate.
//
// The policy is pure: given counter state and an action it returns a
// Decision (free or charge of a fixed cost) and never touches storage,
// the ledger, or the clock. Charging based on the index of the message
// about to be sent (not the count after sending) guarantees that the
// boundary message entering a new paid block triggers exactly one charge
// and that no message within an already-paid block is charged again.
package policy

import (
	"fmt"

	"github.com/xraph/tollgate/types"
)

// Default parameter values.
const (
	DefaultFreeLimit   = 5
	DefaultBlockSize   = 3
	DefaultBlockCost   = types.Tokens(5)
	DefaultContactCost = types.Tokens(50)
)

// Policy holds the billing parameters for one marketplace.
type Policy struct {
	// FreeLimit is the number of messages an actor may send into a
	// conversation before block billing starts.
	FreeLimit int64 `json:"free_limit"`

	// BlockSize is the number of messages covered by one paid block.
	BlockSize int64 `json:"block_size"`

	// BlockCost is the token price of one message block.
	BlockCost types.Tokens `json:"block_cost"`

	// ContactCost is the one-time token price for first contact with a
	// vendor on a campaign.
	ContactCost types.Tokens `json:"contact_cost"`
}

// Default returns the standard marketplace policy.
func Default() Policy {
	return Policy{
		FreeLimit:   DefaultFreeLimit,
		BlockSize:   DefaultBlockSize,
		BlockCost:   DefaultBlockCost,
		ContactCost: DefaultContactCost,
	}
}

// Validate checks that the parameters are usable.
func (p Policy) Validate() error {
	if p.FreeLimit < 0 {
		return fmt.Errorf("policy: free limit must be >= 0, got %d", p.FreeLimit)
	}
	if p.BlockSize <= 0 {
		return fmt.Errorf("policy: block size must be > 0, got %d", p.BlockSize)
	}
	if p.BlockCost.IsNegative() {
		return fmt.Errorf("policy: block cost must be >= 0, got %s", p.BlockCost)
	}
	if p.ContactCost.IsNegative() {
		return fmt.Errorf("policy: contact cost must be >= 0, got %s", p.ContactCost)
	}
	return nil
}

// RequiredBlocks returns how many paid blocks a sent-message count consumes:
// ceil(max(0, sentCount-FreeLimit) / BlockSize). A block is owed as soon as
// its first message is sent, not once it fills up.
func (p Policy) RequiredBlocks(sentCount int64) int64 {
	chargeable := sentCount - p.FreeLimit
	if chargeable <= 0 {
		return 0
	}
	return (chargeable + p.BlockSize - 1) / p.BlockSize
}

// ForMessage decides whether the next message may be sent for free.
// sentCount and paidBlocks are the counters BEFORE the send: the decision
// is evaluated against message number sentCount+1.
func (p Policy) ForMessage(sentCount, paidBlocks int64) Decision {
	if p.RequiredBlocks(sentCount+1) <= paidBlocks {
		return free()
	}
	return charge(p.BlockCost)
}

// ForContact decides whether opening a conversation with a vendor on a
// campaign requires the one-time contact fee.
func (p Policy) ForContact(alreadyCharged bool) Decision {
	if alreadyCharged {
		return free()
	}
	return charge(p.ContactCost)
}

// FreeRemaining returns how many free messages are left before the next
// send would fall into a paid block. Display helper only; billing decisions
// go through ForMessage.
func (p Policy) FreeRemaining(sentCount int64) int64 {
	remaining := p.FreeLimit - sentCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
